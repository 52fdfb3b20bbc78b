package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/medreport/internal/flagx"
	"github.com/dmitrijs2005/medreport/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1m" or "7d" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Fields that are absent (zero) in the file leave the runtime Config
// untouched.
type JsonConfig struct {
	HTTPAddr       string   `json:"http_addr"`
	HealthAddrGRPC string   `json:"grpc_health_addr"`
	CORSOrigins    []string `json:"cors_origins"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`

	StoreBackend string `json:"store_backend"`
	DataFile     string `json:"data_file"`
	DatabaseDSN  string `json:"database_dsn"`

	JWTSecret  string         `json:"jwt_secret"`
	TokenTTL   timex.Duration `json:"token_ttl"`
	EncSecret  string         `json:"enc_secret"`
	EncSalt    string         `json:"enc_salt"`
	BcryptCost int            `json:"bcrypt_cost"`

	AIProvider string         `json:"ai_provider"`
	AIAPIKey   string         `json:"ai_api_key"`
	AIModel    string         `json:"ai_model"`
	AIBaseURL  string         `json:"ai_base_url"`
	AITimeout  timex.Duration `json:"ai_timeout"`

	RateLimitBackend string         `json:"rate_limit_backend"`
	RedisAddr        string         `json:"redis_addr"`
	AuthRateLimit    int            `json:"auth_rate_limit"`
	AuthRateWindow   timex.Duration `json:"auth_rate_window"`
	AIRateLimit      int            `json:"ai_rate_limit"`
	AIRateWindow     timex.Duration `json:"ai_rate_window"`

	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	OCREnabled            *bool  `json:"ocr_enabled"`
	VisionCredentialsFile string `json:"vision_credentials_file"`

	AuditSink string `json:"audit_sink"`
	AuditFile string `json:"audit_file"`

	LogBackend  string `json:"log_backend"`
	LogLevel    string `json:"log_level"`
	TraceStdout *bool  `json:"trace_stdout"`

	ComparisonMetrics []string `json:"comparison_metrics"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	The CONFIG environment variable.
//	If neither is set, no JSON file is loaded.
//
// A file that cannot be read or contains invalid JSON is an error.
func parseJson(config *Config, args []string, lookupEnv func(string) (string, bool)) error {
	jsonConfigFile := flagx.ConfigPath(args, lookupEnv)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setStr(&config.HTTPAddr, c.HTTPAddr)
	setStr(&config.HealthAddrGRPC, c.HealthAddrGRPC)
	setList(&config.CORSOrigins, c.CORSOrigins)
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}

	setStr(&config.StoreBackend, c.StoreBackend)
	setStr(&config.DataFile, c.DataFile)
	setStr(&config.DatabaseDSN, c.DatabaseDSN)

	setStr(&config.JWTSecret, c.JWTSecret)
	setDuration(&config.TokenTTL, c.TokenTTL)
	setStr(&config.EncSecret, c.EncSecret)
	setStr(&config.EncSalt, c.EncSalt)
	setInt(&config.BcryptCost, c.BcryptCost)

	setStr(&config.AIProvider, c.AIProvider)
	setStr(&config.AIAPIKey, c.AIAPIKey)
	setStr(&config.AIModel, c.AIModel)
	setStr(&config.AIBaseURL, c.AIBaseURL)
	setDuration(&config.AITimeout, c.AITimeout)

	setStr(&config.RateLimitBackend, c.RateLimitBackend)
	setStr(&config.RedisAddr, c.RedisAddr)
	setInt(&config.AuthRateLimit, c.AuthRateLimit)
	setDuration(&config.AuthRateWindow, c.AuthRateWindow)
	setInt(&config.AIRateLimit, c.AIRateLimit)
	setDuration(&config.AIRateWindow, c.AIRateWindow)

	setStr(&config.S3AccessKey, c.S3AccessKey)
	setStr(&config.S3SecretKey, c.S3SecretKey)
	setStr(&config.S3Bucket, c.S3Bucket)
	setStr(&config.S3Region, c.S3Region)
	setStr(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.OCREnabled != nil {
		config.OCREnabled = *c.OCREnabled
	}
	setStr(&config.VisionCredentialsFile, c.VisionCredentialsFile)

	setStr(&config.AuditSink, c.AuditSink)
	setStr(&config.AuditFile, c.AuditFile)
	setStr(&config.LogBackend, c.LogBackend)
	setStr(&config.LogLevel, c.LogLevel)
	if c.TraceStdout != nil {
		config.TraceStdout = *c.TraceStdout
	}
	setList(&config.ComparisonMetrics, c.ComparisonMetrics)
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func setList(dst *[]string, v []string) {
	if v != nil {
		*dst = v
	}
}
