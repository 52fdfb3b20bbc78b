package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) root(c *gin.Context) {
	c.String(http.StatusOK, "MedReport backend is running.")
}

func (h *handler) healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
