package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/medreport/internal/cryptox"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/config"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (r *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *recordingAudit) last() audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

func newStore(t *testing.T) *repomanager.DocumentRepositoryManager {
	t.Helper()
	m, err := repomanager.OpenDocument(filepath.Join(t.TempDir(), "store.json"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newCipher(t *testing.T) *cryptox.FieldCipher {
	t.Helper()
	c, err := cryptox.NewFieldCipherWithKey(bytes.Repeat([]byte{7}, cryptox.KeySize), logging.NewNop())
	require.NoError(t, err)
	return c
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

// addUser inserts a user directly into the store.
func addUser(t *testing.T, m repomanager.RepositoryManager, id, email string) {
	t.Helper()
	err := m.Update(context.Background(), func(ctx context.Context, r repomanager.Repos) error {
		_, err := r.Users().Create(ctx, &models.User{ID: id, Email: email, CreatedAt: time.Now().UTC()})
		return err
	})
	require.NoError(t, err)
}

// tickingClock returns a strictly increasing time on every call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}
