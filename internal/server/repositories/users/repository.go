package users

import (
	"context"

	"github.com/dmitrijs2005/medreport/internal/server/models"
)

// Repository persists accounts. Email matching is exact.
type Repository interface {
	// Create stores user and fails with common.ErrorAlreadyExists when the
	// email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// Delete removes the user; common.ErrorNotFound when absent.
	Delete(ctx context.Context, id string) error
}
