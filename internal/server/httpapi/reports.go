package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/medreport/internal/server/metrics"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/services"
	"github.com/gin-gonic/gin"
)

type reportResponse struct {
	Success bool           `json:"success,omitempty"`
	Report  *models.Report `json:"report"`
}

type reportsResponse struct {
	Reports []*models.Report `json:"reports"`
}

type metricsResponse struct {
	Metrics []metrics.Metric `json:"metrics"`
}

type comparisonResponse struct {
	Comparison *services.Comparison `json:"comparison"`
}

type analyzeReportRequest struct {
	Text        string `json:"text"`
	DocumentKey string `json:"documentKey"`
}

func (h *handler) createReport(c *gin.Context) {
	var in services.CreateReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c, err)
		return
	}

	r, err := h.reports.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reportResponse{Success: true, Report: r})
}

// analyzeReport runs the analysis and stores its derived report in one call.
func (h *handler) analyzeReport(c *gin.Context) {
	var req analyzeReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	ctx := c.Request.Context()
	analysis, err := h.analysis.Analyze(ctx, req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}

	r, err := h.reports.CreateFromAnalysis(ctx, userID(c), analysis, req.DocumentKey)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reportResponse{Success: true, Report: r})
}

func (h *handler) listReports(c *gin.Context) {
	rs, err := h.reports.List(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rs == nil {
		rs = []*models.Report{}
	}
	c.JSON(http.StatusOK, reportsResponse{Reports: rs})
}

func (h *handler) getReport(c *gin.Context) {
	r, err := h.reports.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reportResponse{Report: r})
}

func (h *handler) deleteReport(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *handler) reportMetrics(c *gin.Context) {
	ms, err := h.reports.Metrics(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if ms == nil {
		ms = []metrics.Metric{}
	}
	c.JSON(http.StatusOK, metricsResponse{Metrics: ms})
}

func (h *handler) compareReports(c *gin.Context) {
	cmp, err := h.reports.CompareLatest(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comparisonResponse{Comparison: cmp})
}

// reportDocument streams the decrypted original upload of a report.
func (h *handler) reportDocument(c *gin.Context) {
	doc, err := h.reports.Document(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Data(http.StatusOK, ct, doc.Data)
}
