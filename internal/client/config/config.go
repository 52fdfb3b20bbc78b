package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/medreport/internal/timex"
)

// Config holds runtime settings for the MedReport CLI.
//
// Fields:
//   - ServerURL: base URL of the backend HTTP API.
//   - TokenFile: where the session token is kept between invocations.
//   - Timeout: per-request timeout; analysis calls can take a while.
type Config struct {
	ServerURL string
	TokenFile string
	Timeout   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:5000"
	c.TokenFile = defaultTokenFile()
	c.Timeout = 90 * time.Second
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".medreport-token"
	}
	return filepath.Join(dir, "medreport", "token")
}

// Load applies defaults, then overlays the JSON file at jsonPath (when not
// empty) and finally the environment. Later sources take precedence.
func Load(jsonPath string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if err := parseEnv(cfg, lookupEnv); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	return cfg, nil
}

// parseEnv reads MEDREPORT_SERVER, MEDREPORT_TOKEN_FILE and
// MEDREPORT_TIMEOUT.
func parseEnv(c *Config, lookupEnv func(string) (string, bool)) error {
	if lookupEnv == nil {
		return nil
	}
	if v, ok := lookupEnv("MEDREPORT_SERVER"); ok && v != "" {
		c.ServerURL = v
	}
	if v, ok := lookupEnv("MEDREPORT_TOKEN_FILE"); ok && v != "" {
		c.TokenFile = v
	}
	if v, ok := lookupEnv("MEDREPORT_TIMEOUT"); ok && v != "" {
		d, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MEDREPORT_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}
