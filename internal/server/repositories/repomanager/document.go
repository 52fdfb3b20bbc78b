package repomanager

import (
	"context"

	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/document"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/reports"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/users"
)

// DocumentRepositoryManager serves repositories over a single JSON file.
type DocumentRepositoryManager struct {
	store *document.Store
}

// OpenDocument opens (or initializes) the JSON store at path.
func OpenDocument(path string, logger logging.Logger) (*DocumentRepositoryManager, error) {
	store, err := document.Open(path, logger)
	if err != nil {
		return nil, err
	}
	return &DocumentRepositoryManager{store: store}, nil
}

func bindSnapshot(snap *document.Snapshot) Repos {
	return repos{
		users:   users.NewDocumentRepository(snap),
		reports: reports.NewDocumentRepository(snap),
	}
}

func (m *DocumentRepositoryManager) View(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return m.store.View(ctx, func(ctx context.Context, snap *document.Snapshot) error {
		return fn(ctx, bindSnapshot(snap))
	})
}

func (m *DocumentRepositoryManager) Update(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return m.store.Update(ctx, func(ctx context.Context, snap *document.Snapshot) error {
		return fn(ctx, bindSnapshot(snap))
	})
}

func (m *DocumentRepositoryManager) Close() error {
	return nil
}
