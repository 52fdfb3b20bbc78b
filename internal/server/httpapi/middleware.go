package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/auth"
	"github.com/dmitrijs2005/medreport/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// authenticate verifies the bearer token. With required unset a request
// without an Authorization header passes anonymously, but a bad token is
// still rejected.
func (h *handler) authenticate(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(common.AuthorizationHeaderName))
		if header == "" {
			if required {
				respondError(c, http.StatusUnauthorized, APIError{Message: "missing bearer token", Code: "unauthorized"})
				return
			}
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			respondError(c, http.StatusUnauthorized, APIError{Message: "malformed authorization header", Code: "unauthorized"})
			return
		}

		id, err := auth.ParseToken(strings.TrimSpace(token), h.secret)
		if err != nil {
			status, body := mapError(err)
			respondError(c, status, body)
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// userID is only called behind authenticate(true).
func userID(c *gin.Context) string {
	id, _ := identity(c)
	return id.UserID
}

// limit rejects requests over the policy for the client IP. A limiter
// error lets the request through.
func limit(l ratelimit.Limiter, logger logging.Logger) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		d, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable, allowing request",
				"path", c.FullPath(), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			status, body := mapError(common.ErrRateLimited)
			respondError(c, status, body)
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// remoteAddr makes the client IP visible to the audit log.
func remoteAddr() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithRemoteAddr(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
		}
		logger.Debug(c.Request.Context(), "request", args...)
	}
}
