// Package reports provides repositories for encrypted medical report records.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/dbx"
	"github.com/dmitrijs2005/medreport/internal/server/models"
)

// PostgresRepository implements report storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reportColumns = `id, user_id, summary, insights, glossary, raw, document_key, created_at`

// Create inserts report. A missing owner surfaces as common.ErrorNotFound.
func (r *PostgresRepository) Create(ctx context.Context, report *models.StoredReport) (*models.StoredReport, error) {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.UserID, report.Summary, report.Insights, report.Glossary, report.Raw,
		nullString(report.DocumentKey), report.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return report, nil
}

// ListByUser returns the user's reports ordered by (created_at, id) descending.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.StoredReport, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select reports: %w", err)
	}
	defer rows.Close()

	result := make([]*models.StoredReport, 0)
	for rows.Next() {
		item, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.StoredReport, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE id = $1 AND user_id = $2`

	item, err := scanReport(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*models.StoredReport, error) {
	var item models.StoredReport
	var documentKey sql.NullString
	if err := s.Scan(
		&item.ID, &item.UserID, &item.Summary, &item.Insights, &item.Glossary, &item.Raw,
		&documentKey, &item.CreatedAt,
	); err != nil {
		return nil, err
	}
	item.DocumentKey = documentKey.String
	return &item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
