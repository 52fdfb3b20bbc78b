package reports

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var columns = []string{"id", "user_id", "summary", "insights", "glossary", "raw", "document_key", "created_at"}

func sampleReport() *models.StoredReport {
	return &models.StoredReport{
		ID: "r-1", UserID: "u-1", Summary: "s", Insights: "i", Glossary: "g", Raw: "raw", CreatedAt: t0,
	}
}

func TestPostgres_Create(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+reports\s*\(id, user_id, summary, insights, glossary, raw, document_key, created_at\)\s*VALUES\s*\(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`
	mock.ExpectExec(q).
		WithArgs("r-1", "u-1", "s", "i", "g", "raw", nil, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "r-1", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unknown owner", err: &pgconn.PgError{Code: "23503"}, want: common.ErrorNotFound},
		{name: "duplicate id", err: &pgconn.PgError{Code: "23505"}, want: common.ErrorAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(`INSERT\s+INTO\s+reports`).WillReturnError(tt.err)

			_, err := repo.Create(context.Background(), sampleReport())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(`INSERT\s+INTO\s+reports`).WillReturnError(errors.New("db down"))

		_, err := repo.Create(context.Background(), sampleReport())
		assert.ErrorContains(t, err, "db error: db down")
	})
}

func TestPostgres_ListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("r-2", "u-1", "s2", "i2", "g2", "raw2", "users/u-1/2024/03/x", t0).
		AddRow("r-1", "u-1", "s1", "i1", "g1", "raw1", nil, t0)
	mock.ExpectQuery(`(?s)FROM\s+reports\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$2`).
		WithArgs("u-1", 2).
		WillReturnRows(rows)

	got, err := repo.ListByUser(context.Background(), "u-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-2", got[0].ID)
	assert.Equal(t, "users/u-1/2024/03/x", got[0].DocumentKey)
	assert.Empty(t, got[1].DocumentKey)
}

func TestPostgres_ListByUser_NoLimit(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := repo.ListByUser(context.Background(), "u-1", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPostgres_ListByUser_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+reports`).WillReturnError(errors.New("boom"))

	_, err := repo.ListByUser(context.Background(), "u-1", 0)
	assert.ErrorContains(t, err, "failed to select reports")
}

func TestPostgres_GetByID(t *testing.T) {
	q := `(?s)FROM\s+reports\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`

	t.Run("found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("r-1", "u-1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("r-1", "u-1", "s", "i", "g", "raw", nil, t0))

		got, err := repo.GetByID(context.Background(), "u-1", "r-1")
		require.NoError(t, err)
		assert.Equal(t, "raw", got.Raw)
	})

	t.Run("foreign or missing", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("r-1", "u-2").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), "u-2", "r-1")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestPostgres_Delete(t *testing.T) {
	q := `DELETE\s+FROM\s+reports\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`

	t.Run("deleted", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(q).WithArgs("r-1", "u-1").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Delete(context.Background(), "u-1", "r-1"))
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(q).WithArgs("r-1", "u-2").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.Delete(context.Background(), "u-2", "r-1"), common.ErrorNotFound)
	})

	t.Run("unexpected rows", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(q).WithArgs("r-1", "u-1").WillReturnResult(sqlmock.NewResult(0, 2))
		assert.ErrorContains(t, repo.Delete(context.Background(), "u-1", "r-1"), "unexpected rows affected")
	})
}

func TestPostgres_DeleteByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+reports\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
