// Package common contains shared constants and sentinel errors used across
// MedReport components.
package common

// AuthorizationHeaderName carries the bearer session token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "
