package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/ocr"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

type analyzeRequest struct {
	Text string `json:"text"`
}

type askRequest struct {
	Question string `json:"question"`
}

type analyzeResponse struct {
	Result string `json:"result"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type ocrResponse struct {
	Text        string `json:"text"`
	MimeType    string `json:"mimeType,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	DocumentKey string `json:"documentKey,omitempty"`
}

func (h *handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	out, err := h.analysis.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analyzeResponse{Result: out})
}

func (h *handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	out, err := h.analysis.Ask(c.Request.Context(), req.Question)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, askResponse{Answer: out})
}

// extractText reads the multipart "file" field and returns its text. For an
// authenticated caller the upload is also archived and its key returned.
func (h *handler) extractText(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(c, ocr.ErrTooLarge)
			return
		}
		v := common.NewValidationError()
		v.Add("file", "is required")
		h.fail(c, v)
		return
	}
	if fh.Size > h.maxUpload {
		h.fail(c, ocr.ErrTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		h.fail(c, err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		h.fail(c, ocr.ErrTooLarge)
		return
	}

	ctx := c.Request.Context()
	res, err := h.ocr.ExtractText(ctx, data)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := ocrResponse{Text: res.Text, MimeType: res.MimeType, Pages: res.Pages}
	if id, ok := identity(c); ok && h.reports != nil {
		key, err := h.reports.ArchiveDocument(ctx, id.UserID, data, res.MimeType)
		if err != nil {
			h.logger.Error(ctx, "error archiving upload", "user", id.UserID, "error", err)
		}
		resp.DocumentKey = key
	}

	c.JSON(http.StatusOK, resp)
}
