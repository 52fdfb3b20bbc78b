package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/medreport/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":5000")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-m string   store backend: document | postgres
//	-f string   document store JSON file
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   field encryption secret
//	-p string   AI provider: gemini | openai
//	-l string   log level
//	-t duration token lifetime (e.g., "168h")
//
// The function first filters args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c config flag.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-m", "-f", "-d", "-s", "-k", "-p", "-l", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run HTTP server")
	fs.StringVar(&config.HealthAddrGRPC, "g", config.HealthAddrGRPC, "address and port of gRPC health endpoint")
	fs.StringVar(&config.StoreBackend, "m", config.StoreBackend, "store backend")
	fs.StringVar(&config.DataFile, "f", config.DataFile, "document store file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "jwt secret key")
	fs.StringVar(&config.EncSecret, "k", config.EncSecret, "field encryption secret")
	fs.StringVar(&config.AIProvider, "p", config.AIProvider, "ai provider")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.TokenTTL, "t", config.TokenTTL, "token lifetime")

	return fs.Parse(args)
}
