// Package document implements a single-file JSON store. The whole dataset
// lives in one Snapshot; writers are serialized and every committed write
// replaces the file atomically.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/medreport/internal/filex"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/models"
)

// ErrReadOnly is returned when a mutation is attempted inside View.
var ErrReadOnly = errors.New("document store: snapshot is read-only")

// Snapshot is the full persisted dataset.
type Snapshot struct {
	Users   []models.User         `json:"users"`
	Reports []models.StoredReport `json:"reports"`

	readOnly bool
}

// ReadOnly reports whether the snapshot was handed out by View.
func (s *Snapshot) ReadOnly() bool {
	return s.readOnly
}

// Clone returns a deep, writable copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Users:   make([]models.User, len(s.Users)),
		Reports: make([]models.StoredReport, len(s.Reports)),
	}
	copy(c.Users, s.Users)
	copy(c.Reports, s.Reports)
	return c
}

// Store owns the committed snapshot and its backing file.
type Store struct {
	path   string
	logger logging.Logger

	writeMu sync.Mutex

	mu        sync.RWMutex
	committed *Snapshot
}

// Open loads the store at path, creating the parent directory and starting
// from an empty dataset when the file does not exist yet.
func Open(path string, logger logging.Logger) (*Store, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	snap := &Snapshot{Users: []models.User{}, Reports: []models.StoredReport{}}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	case len(b) > 0:
		if err := json.Unmarshal(b, snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if snap.Users == nil {
			snap.Users = []models.User{}
		}
		if snap.Reports == nil {
			snap.Reports = []models.StoredReport{}
		}
	}
	snap.readOnly = true

	if logger == nil {
		logger = logging.NewNop()
	}

	return &Store{path: path, logger: logger.With("module", "document-store"), committed: snap}, nil
}

// View runs fn against the latest committed snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, snap *Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, s.committed)
}

// Update runs fn against a private copy of the committed snapshot. When fn
// succeeds the copy is written to disk and becomes the committed snapshot.
// When fn or the write fails nothing changes.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, snap *Snapshot) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.committed.Clone()
	s.mu.RUnlock()

	if err := fn(ctx, work); err != nil {
		return err
	}

	b, err := json.MarshalIndent(work, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := filex.WriteFileAtomic(s.path, b, 0o600); err != nil {
		s.logger.Error(ctx, "persist snapshot", "error", err)
		return fmt.Errorf("persist snapshot: %w", err)
	}

	work.readOnly = true
	s.mu.Lock()
	s.committed = work
	s.mu.Unlock()
	return nil
}
