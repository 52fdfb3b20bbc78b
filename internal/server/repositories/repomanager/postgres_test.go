package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/reports"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/users"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ RepositoryManager = m
	if m.DB() != db {
		t.Fatal("DB() must return the pool")
	}
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	if u := m.Users(db); u == nil {
		t.Fatal("Users() nil")
	}
	if r := m.Reports(db); r == nil {
		t.Fatal("Reports() nil")
	}

	var _ users.Repository = m.Users(db)
	var _ reports.Repository = m.Reports(db)
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPostgresUpdate_CommitsTogether(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	m, _ := NewPostgresRepositoryManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE\s+FROM\s+reports\s+WHERE\s+user_id`).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE\s+FROM\s+users`).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := m.Update(context.Background(), func(ctx context.Context, r Repos) error {
		if _, err := r.Reports().DeleteByUser(ctx, "u-1"); err != nil {
			return err
		}
		return r.Users().Delete(ctx, "u-1")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_RollsBackOnError(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	m, _ := NewPostgresRepositoryManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+reports`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := m.Update(context.Background(), func(ctx context.Context, r Repos) error {
		if _, err := r.Reports().Create(ctx, &models.StoredReport{ID: "r-1", UserID: "u-1", CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_RetriesSerializationFailure(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	m, _ := NewPostgresRepositoryManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE\s+FROM\s+users`).WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE\s+FROM\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err := m.Update(context.Background(), func(ctx context.Context, r Repos) error {
		calls++
		return r.Users().Delete(ctx, "u-1")
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresView_UsesPool(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	m, _ := NewPostgresRepositoryManager(db)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).WithArgs("a@b.c").WillReturnError(sql.ErrNoRows)

	err := m.View(context.Background(), func(ctx context.Context, r Repos) error {
		_, err := r.Users().GetUserByEmail(ctx, "a@b.c")
		return err
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
