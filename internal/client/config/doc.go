// Package config loads runtime configuration for the MedReport CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file, selected with the --config flag.
//  3. MEDREPORT_SERVER, MEDREPORT_TOKEN_FILE and MEDREPORT_TIMEOUT.
//  4. Command-line flags handled by the CLI itself.
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:5000",
//	  "token_file": "/home/me/.config/medreport/token",
//	  "timeout": "90s"
//	}
package config
