// Package models defines server-side data models persisted by the store.
package models

import "time"

// User is an account. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"passwordHash" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
