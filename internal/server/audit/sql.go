package audit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/medreport/internal/dbx"
)

// SQLRecorder inserts entries into the audit_logs table.
type SQLRecorder struct {
	db dbx.DBTX
}

func NewSQLRecorder(db dbx.DBTX) *SQLRecorder {
	return &SQLRecorder{db: db}
}

func (r *SQLRecorder) Record(ctx context.Context, e Entry) error {
	if addr := RemoteAddr(ctx); e.RemoteAddr == "" && addr != "" {
		e.RemoteAddr = addr
	}
	e = fill(e)

	query := `
		INSERT INTO audit_logs (id, at, actor_id, action, target_type, target_id, outcome, remote_addr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.At, e.ActorID, e.Action, e.TargetType, e.TargetID, e.Outcome, e.RemoteAddr)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
