// Package repomanager hides the store backend behind one unit-of-work API.
// Services never see transactions or snapshots, only Repos.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/medreport/internal/server/repositories/reports"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/users"
)

// Repos is the set of repositories bound to one View or Update call.
type Repos interface {
	Users() users.Repository
	Reports() reports.Repository
}

type RepositoryManager interface {
	// View runs fn against the latest committed state.
	View(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// Update runs fn as one atomic read-modify-write. Either every mutation
	// made through r is committed or none is. Concurrent Updates never lose
	// each other's writes.
	Update(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Close() error
}

type repos struct {
	users   users.Repository
	reports reports.Repository
}

func (r repos) Users() users.Repository     { return r.users }
func (r repos) Reports() reports.Repository { return r.reports }
