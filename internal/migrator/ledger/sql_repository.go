package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/dbx"
	"github.com/google/uuid"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) q(query string) string {
	return dbx.Rebind(r.dialect, query)
}

func (r *SQLRepository) Get(ctx context.Context, branch, fileID string) (*Record, error) {
	var (
		rec     Record
		status  string
		updated int64
	)
	err := r.db.QueryRowContext(ctx, r.q(`
		SELECT id, branch, file_id, name, local_name, period_year, period_month, status, run_id, updated_at
		FROM completions WHERE branch = ? AND file_id = ?`), branch, fileID).
		Scan(&rec.ID, &rec.Branch, &rec.FileID, &rec.Name, &rec.LocalName,
			&rec.Year, &rec.Month, &status, &rec.RunID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger record %s/%s: %w", branch, fileID, err)
	}
	rec.Status = Status(status)
	rec.UpdatedAt = time.Unix(updated, 0).UTC()
	return &rec, nil
}

func (r *SQLRepository) MarkUploaded(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO completions (id, branch, file_id, name, local_name, period_year, period_month, status, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (branch, file_id) DO UPDATE SET
			name = excluded.name,
			local_name = excluded.local_name,
			period_year = excluded.period_year,
			period_month = excluded.period_month,
			status = excluded.status,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`),
		rec.ID, rec.Branch, rec.FileID, rec.Name, rec.LocalName, rec.Year, rec.Month,
		string(StatusUploaded), rec.RunID, rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to mark uploaded %s/%s: %w", rec.Branch, rec.FileID, err)
	}
	return nil
}

func (r *SQLRepository) MarkCompleted(ctx context.Context, branch, fileID, runID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE completions SET status = ?, run_id = ?, updated_at = ?
		WHERE branch = ? AND file_id = ?`),
		string(StatusCompleted), runID, at.Unix(), branch, fileID)
	if err != nil {
		return fmt.Errorf("failed to mark completed %s/%s: %w", branch, fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark completed %s/%s: %w", branch, fileID, err)
	}
	if n == 0 {
		return fmt.Errorf("mark completed %s/%s: %w", branch, fileID, common.ErrorNotFound)
	}
	return nil
}
