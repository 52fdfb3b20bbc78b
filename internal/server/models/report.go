package models

import "time"

// StoredReport is a report as persisted. Summary and Raw hold field
// ciphertext; Insights and Glossary each hold one encrypted JSON array.
type StoredReport struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Summary     string    `json:"summary" db:"summary"`
	Insights    string    `json:"insights" db:"insights"`
	Glossary    string    `json:"glossary" db:"glossary"`
	Raw         string    `json:"raw" db:"raw"`
	DocumentKey string    `json:"documentKey,omitempty" db:"document_key"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Report is the decrypted view of a StoredReport.
type Report struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Summary     string    `json:"summary"`
	Insights    []string  `json:"insights"`
	Glossary    []string  `json:"glossary"`
	Raw         string    `json:"raw"`
	DocumentKey string    `json:"documentKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Newer reports whether r sorts after o in a user's report history:
// by creation time, ties broken by id.
func (r StoredReport) Newer(o StoredReport) bool {
	if !r.CreatedAt.Equal(o.CreatedAt) {
		return r.CreatedAt.After(o.CreatedAt)
	}
	return r.ID > o.ID
}
