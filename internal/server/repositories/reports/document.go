package reports

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/document"
)

// DocumentRepository works on one document.Snapshot for the duration of a
// View or Update callback.
type DocumentRepository struct {
	snap *document.Snapshot
}

func NewDocumentRepository(snap *document.Snapshot) *DocumentRepository {
	return &DocumentRepository{snap: snap}
}

func (r *DocumentRepository) Create(ctx context.Context, report *models.StoredReport) (*models.StoredReport, error) {
	if r.snap.ReadOnly() {
		return nil, document.ErrReadOnly
	}
	if !slices.ContainsFunc(r.snap.Users, func(u models.User) bool { return u.ID == report.UserID }) {
		return nil, common.ErrorNotFound
	}
	if slices.ContainsFunc(r.snap.Reports, func(rep models.StoredReport) bool { return rep.ID == report.ID }) {
		return nil, common.ErrorAlreadyExists
	}
	r.snap.Reports = append(r.snap.Reports, *report)
	return report, nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.StoredReport, error) {
	result := make([]*models.StoredReport, 0)
	for _, rep := range r.snap.Reports {
		if rep.UserID == userID {
			item := rep
			result = append(result, &item)
		}
	}
	slices.SortStableFunc(result, func(a, b *models.StoredReport) int {
		switch {
		case a.Newer(*b):
			return -1
		case b.Newer(*a):
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, userID, id string) (*models.StoredReport, error) {
	i := r.index(userID, id)
	if i < 0 {
		return nil, common.ErrorNotFound
	}
	item := r.snap.Reports[i]
	return &item, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, userID, id string) error {
	if r.snap.ReadOnly() {
		return document.ErrReadOnly
	}
	i := r.index(userID, id)
	if i < 0 {
		return common.ErrorNotFound
	}
	r.snap.Reports = slices.Delete(r.snap.Reports, i, i+1)
	return nil
}

func (r *DocumentRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if r.snap.ReadOnly() {
		return 0, document.ErrReadOnly
	}
	before := len(r.snap.Reports)
	r.snap.Reports = slices.DeleteFunc(r.snap.Reports, func(rep models.StoredReport) bool {
		return rep.UserID == userID
	})
	return int64(before - len(r.snap.Reports)), nil
}

func (r *DocumentRepository) index(userID, id string) int {
	return slices.IndexFunc(r.snap.Reports, func(rep models.StoredReport) bool {
		return rep.ID == id && rep.UserID == userID
	})
}
