package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/medreport/internal/dbx"
	"github.com/dmitrijs2005/medreport/internal/server/migrations"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/reports"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// updateAttempts bounds the retries of a serializable Update on conflict.
const updateAttempts = 3

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Reports returns a reports.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Reports(db dbx.DBTX) reports.Repository {
	return reports.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) bind(db dbx.DBTX) Repos {
	return repos{users: m.Users(db), reports: m.Reports(db)}
}

// View runs fn outside an explicit transaction; each statement sees the
// latest committed rows.
func (m *PostgresRepositoryManager) View(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return fn(ctx, m.bind(m.db))
}

// Update runs fn inside a SERIALIZABLE transaction, retrying on
// serialization conflicts.
func (m *PostgresRepositoryManager) Update(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return dbx.WithRetryTx(ctx, m.db, dbx.Serializable, updateAttempts, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, m.bind(tx))
	})
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// DB exposes the pool for components that share it (SQL audit sink).
func (m *PostgresRepositoryManager) DB() *sql.DB {
	return m.db
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager
// over an open pool.
func NewPostgresRepositoryManager(db *sql.DB) (*PostgresRepositoryManager, error) {
	return &PostgresRepositoryManager{db: db}, nil
}

// OpenPostgres opens a pgx pool for dsn, checks connectivity and applies
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}
