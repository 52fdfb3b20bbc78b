// Package cli provides the MedReport command-line client.
//
// Commands are built with cobra and talk to the server through the client
// package. The session token obtained by register or login is saved to the
// token file and reused by later invocations until logout or
// delete-account.
//
// Key commands:
//   - register, login, logout, delete-account
//   - reports list | show | delete | metrics | compare | add
//   - analyze, ask, ocr
//   - health
package cli
