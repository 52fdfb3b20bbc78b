package users

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

func (r *DocumentRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if r.snap.ReadOnly() {
		return nil, document.ErrReadOnly
	}
	for _, u := range r.snap.Users {
		if u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.snap.Users = append(r.snap.Users, *user)
	return user, nil
}

func (r *DocumentRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *DocumentRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *DocumentRepository) find(match func(models.User) bool) (*models.User, error) {
	i := slices.IndexFunc(r.snap.Users, match)
	if i < 0 {
		return nil, common.ErrorNotFound
	}
	u := r.snap.Users[i]
	return &u, nil
}

// Delete removes the user and, mirroring the SQL cascade, every report the
// user owns.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if r.snap.ReadOnly() {
		return document.ErrReadOnly
	}
	i := slices.IndexFunc(r.snap.Users, func(u models.User) bool { return u.ID == id })
	if i < 0 {
		return common.ErrorNotFound
	}
	r.snap.Users = slices.Delete(r.snap.Users, i, i+1)
	r.snap.Reports = slices.DeleteFunc(r.snap.Reports, func(rep models.StoredReport) bool {
		return rep.UserID == id
	})
	return nil
}
