package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/ocr"
	"github.com/dmitrijs2005/medreport/internal/server/services"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every failed request.
type APIError struct {
	Message   string            `json:"message"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, e APIError) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: e})
}

// mapError turns a service error into a status and envelope. Anything it
// does not recognize becomes an opaque 500.
func mapError(err error) (int, APIError) {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, APIError{Message: "invalid request", Code: "validation_error", Fields: ve.Fields}
	}

	var ue *services.UpstreamError
	if errors.As(err, &ue) {
		msg := "AI service unavailable"
		if ue.Timeout {
			msg = "AI service timed out"
		}
		return http.StatusInternalServerError, APIError{Message: msg + ": " + ue.Message(), Code: "upstream_error", Retryable: ue.Retryable()}
	}

	switch {
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, APIError{Message: "user already exists", Code: "user_exists"}
	case errors.Is(err, common.ErrorInvalidCredentials):
		return http.StatusUnauthorized, APIError{Message: "invalid credentials", Code: "invalid_credentials"}
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, APIError{Message: "token expired", Code: "token_expired"}
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, APIError{Message: "unauthorized", Code: "unauthorized"}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, APIError{Message: "not found", Code: "not_found"}
	case errors.Is(err, common.ErrorNotEnoughReports):
		return http.StatusConflict, APIError{Message: "at least two reports are needed for a comparison", Code: "not_enough_reports"}
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, APIError{Message: "too many requests", Code: "rate_limited", Retryable: true}
	case errors.Is(err, ocr.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, APIError{Message: ocr.ErrUnsupportedType.Error(), Code: "unsupported_media_type"}
	case errors.Is(err, ocr.ErrTooLarge):
		return http.StatusBadRequest, APIError{Message: ocr.ErrTooLarge.Error(), Code: "file_too_large"}
	case errors.Is(err, ocr.ErrTooManyPages):
		return http.StatusBadRequest, APIError{Message: ocr.ErrTooManyPages.Error(), Code: "too_many_pages"}
	case errors.Is(err, ocr.ErrEmptyDocument):
		return http.StatusBadRequest, APIError{Message: ocr.ErrEmptyDocument.Error(), Code: "empty_document"}
	case errors.Is(err, ocr.ErrDisabled), errors.Is(err, ocr.ErrMissingCredentials):
		return http.StatusServiceUnavailable, APIError{Message: "OCR is not available", Code: "ocr_unavailable"}
	case errors.Is(err, ocr.ErrOCRFailed):
		return http.StatusServiceUnavailable, APIError{Message: ocr.ErrOCRFailed.Error(), Code: "ocr_failed", Retryable: true}
	}

	return http.StatusInternalServerError, APIError{Message: "internal error", Code: "internal_error"}
}

// fail writes err through mapError; 5xx errors are logged with their cause.
func (h *handler) fail(c *gin.Context, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	respondError(c, status, body)
}

func badJSON(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, APIError{Message: "malformed request body: " + err.Error(), Code: "invalid_json"})
}
