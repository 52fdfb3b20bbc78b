package reports

import (
	"context"

	"github.com/dmitrijs2005/medreport/internal/server/models"
)

// Repository persists encrypted report records. Every lookup is scoped to
// the owning user, so a foreign report id behaves exactly like a missing one.
type Repository interface {
	Create(ctx context.Context, report *models.StoredReport) (*models.StoredReport, error)
	// ListByUser returns the user's reports newest first. limit <= 0 means all.
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.StoredReport, error)
	GetByID(ctx context.Context, userID, id string) (*models.StoredReport, error)
	Delete(ctx context.Context, userID, id string) error
	// DeleteByUser removes every report of userID and returns how many went.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
