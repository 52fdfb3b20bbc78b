package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	s, err := h.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: s.Token})
}

func (h *handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	s, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: s.Token})
}

func (h *handler) deleteUser(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), userID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}
