package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/medreport/internal/timex"
	"github.com/joho/godotenv"
)

// loadDotEnv merges variables from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func loadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// parseEnv overlays Config with environment variables.
//
// Recognized variables:
//
//	PORT / HTTP_ADDR, GRPC_HEALTH_ADDR, CORS_ORIGINS (comma separated)
//	STORE_BACKEND, DATA_FILE, DATABASE_DSN
//	JWT_SECRET, TOKEN_TTL, ENC_SECRET, ENC_SALT, BCRYPT_COST
//	AI_PROVIDER, GEMINI_API_KEY / OPENAI_API_KEY, AI_MODEL, AI_BASE_URL, AI_TIMEOUT
//	RATE_LIMIT_BACKEND, REDIS_ADDR, AUTH_RATE_LIMIT, AUTH_RATE_WINDOW, AI_RATE_LIMIT, AI_RATE_WINDOW
//	S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
//	OCR_ENABLED, GOOGLE_APPLICATION_CREDENTIALS
//	AUDIT_SINK, AUDIT_FILE, LOG_BACKEND, LOG_LEVEL, TRACE_STDOUT, COMPARISON_METRICS
func parseEnv(c *Config, lookupEnv func(string) (string, bool)) error {
	if lookupEnv == nil {
		return nil
	}
	e := envReader{lookup: lookupEnv}

	if port, ok := lookupEnv("PORT"); ok && port != "" {
		c.HTTPAddr = ":" + port
	}
	e.str("HTTP_ADDR", &c.HTTPAddr)
	e.str("GRPC_HEALTH_ADDR", &c.HealthAddrGRPC)
	e.list("CORS_ORIGINS", &c.CORSOrigins)

	e.str("STORE_BACKEND", &c.StoreBackend)
	e.str("DATA_FILE", &c.DataFile)
	e.str("DATABASE_DSN", &c.DatabaseDSN)

	e.str("JWT_SECRET", &c.JWTSecret)
	e.duration("TOKEN_TTL", &c.TokenTTL)
	e.str("ENC_SECRET", &c.EncSecret)
	e.str("ENC_SALT", &c.EncSalt)
	e.int("BCRYPT_COST", &c.BcryptCost)

	e.str("AI_PROVIDER", &c.AIProvider)
	if c.AIProvider == "openai" {
		e.str("OPENAI_API_KEY", &c.AIAPIKey)
	} else {
		e.str("GEMINI_API_KEY", &c.AIAPIKey)
	}
	e.str("AI_API_KEY", &c.AIAPIKey)
	e.str("AI_MODEL", &c.AIModel)
	e.str("AI_BASE_URL", &c.AIBaseURL)
	e.duration("AI_TIMEOUT", &c.AITimeout)

	e.str("RATE_LIMIT_BACKEND", &c.RateLimitBackend)
	e.str("REDIS_ADDR", &c.RedisAddr)
	e.int("AUTH_RATE_LIMIT", &c.AuthRateLimit)
	e.duration("AUTH_RATE_WINDOW", &c.AuthRateWindow)
	e.int("AI_RATE_LIMIT", &c.AIRateLimit)
	e.duration("AI_RATE_WINDOW", &c.AIRateWindow)

	e.str("S3_ACCESS_KEY", &c.S3AccessKey)
	e.str("S3_SECRET_KEY", &c.S3SecretKey)
	e.str("S3_BUCKET", &c.S3Bucket)
	e.str("S3_REGION", &c.S3Region)
	e.str("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)

	e.bool("OCR_ENABLED", &c.OCREnabled)
	e.str("GOOGLE_APPLICATION_CREDENTIALS", &c.VisionCredentialsFile)

	e.str("AUDIT_SINK", &c.AuditSink)
	e.str("AUDIT_FILE", &c.AuditFile)
	e.str("LOG_BACKEND", &c.LogBackend)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.bool("TRACE_STDOUT", &c.TraceStdout)
	e.list("COMPARISON_METRICS", &c.ComparisonMetrics)

	return e.err
}

// envReader applies variables to fields and remembers the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := timex.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	*dst = splitList(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
