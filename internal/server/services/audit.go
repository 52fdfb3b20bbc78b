package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
)

// auditor writes audit entries. A failed write is logged and never fails
// the operation being audited.
type auditor struct {
	rec    audit.Recorder
	logger logging.Logger
}

func newAuditor(rec audit.Recorder, logger logging.Logger) auditor {
	if rec == nil {
		rec = audit.NopRecorder{}
	}
	return auditor{rec: rec, logger: logger}
}

func (a auditor) record(ctx context.Context, e audit.Entry) {
	if err := a.rec.Record(ctx, e); err != nil {
		a.logger.Error(ctx, "audit write failed", "action", e.Action, "actor", e.ActorID, "error", err)
	}
}

// outcome maps an operation result to an audit outcome.
func outcome(err error) string {
	switch {
	case err == nil:
		return audit.OutcomeSuccess
	case errors.Is(err, common.ErrorInvalidCredentials), errors.Is(err, common.ErrorUnauthorized):
		return audit.OutcomeDenied
	default:
		return audit.OutcomeFailure
	}
}

func (a auditor) report(ctx context.Context, userID, action, reportID string, err error) {
	a.record(ctx, audit.Entry{
		ActorID:    userID,
		Action:     action,
		TargetType: audit.TargetReport,
		TargetID:   reportID,
		Outcome:    outcome(err),
	})
}

func (a auditor) user(ctx context.Context, actorID, action, userID string, err error) {
	a.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		TargetType: audit.TargetUser,
		TargetID:   userID,
		Outcome:    outcome(err),
	})
}
