// Package client is the HTTP client of the MedReport backend used by the CLI.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the API interface) covering
//     accounts, reports, analysis and OCR.
//  2. A concrete resty implementation (see HTTPClient) that injects the
//     bearer token and decodes the server's error envelope.
//  3. TokenFile, which keeps the session token between CLI invocations.
//
// # Error Handling
//
// Non-2xx answers are returned as *APIError. Common conditions also match
// the sentinel errors ErrUnavailable, ErrUnauthorized, ErrNotFound and
// ErrRateLimited via errors.Is.
package client
