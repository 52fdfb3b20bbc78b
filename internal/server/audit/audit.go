// Package audit records who did what to which resource. Records are
// append-only; sinks are a JSON-lines file or the audit_logs table.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/google/uuid"
)

// Entry is one audit record.
type Entry = models.AuditEntry

const (
	ActionUserRegister    = "user.register"
	ActionUserLogin       = "user.login"
	ActionUserLoginFailed = "user.login_failed"
	ActionUserDelete      = "user.delete"
	ActionReportCreate    = "report.create"
	ActionReportList      = "report.list"
	ActionReportRead      = "report.read"
	ActionReportDelete    = "report.delete"
	ActionReportCompare   = "report.compare"
	ActionReportMetrics   = "report.metrics"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

const (
	TargetUser   = "user"
	TargetReport = "report"
)

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// NopRecorder drops every entry.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

// fill assigns an id and timestamp when the caller left them empty.
func fill(e Entry) Entry {
	if e.ID == "" {
		if id, err := uuid.NewV7(); err == nil {
			e.ID = id.String()
		} else {
			e.ID = uuid.NewString()
		}
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	return e
}

type remoteAddrKey struct{}

// WithRemoteAddr stores the caller's address for entries recorded under ctx.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

// RemoteAddr returns the address stored by WithRemoteAddr.
func RemoteAddr(ctx context.Context) string {
	s, _ := ctx.Value(remoteAddrKey{}).(string)
	return s
}
