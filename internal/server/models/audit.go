package models

import "time"

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	ID         string    `json:"id" db:"id"`
	At         time.Time `json:"at" db:"at"`
	ActorID    string    `json:"actorId,omitempty" db:"actor_id"`
	Action     string    `json:"action" db:"action"`
	TargetType string    `json:"targetType,omitempty" db:"target_type"`
	TargetID   string    `json:"targetId,omitempty" db:"target_id"`
	Outcome    string    `json:"outcome" db:"outcome"`
	RemoteAddr string    `json:"remoteAddr,omitempty" db:"remote_addr"`
}
