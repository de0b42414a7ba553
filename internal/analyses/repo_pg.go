package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docsec-backend/internal/documents"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, document_id, user_id, provider, analysis_type, custom_prompt, prompt_version,
       status, result, error_kind, error_message, error_retryable, created_at, started_at, completed_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, document_id, user_id, provider, analysis_type, custom_prompt, prompt_version, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.DocumentID,
		analysis.UserID,
		analysis.Provider,
		analysis.AnalysisType,
		nullString(analysis.CustomPrompt),
		analysis.PromptVersion,
		analysis.Status,
		analysis.CreatedAt,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// MarkProcessing moves a queued analysis to processing.
func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `UPDATE analyses SET status = $2, started_at = $3, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, analysisID, StatusProcessing, startedAt)
}

// Complete stores the result and marks the analysis completed.
func (r *PGRepo) Complete(ctx context.Context, analysisID string, result Result, completedAt time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	const query = `UPDATE analyses SET status = $2, result = $3, completed_at = $4, updated_at = $4 WHERE id = $1`
	return r.exec(ctx, query, analysisID, StatusCompleted, string(payload), completedAt)
}

// Fail records the error classification and marks the analysis failed.
func (r *PGRepo) Fail(ctx context.Context, analysisID, errorKind, errorMessage string, retryable bool, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, error_kind = $3, error_message = $4, error_retryable = $5, completed_at = $6, updated_at = $6
WHERE id = $1`
	return r.exec(ctx, query, analysisID, StatusFailed, errorKind, errorMessage, retryable, completedAt)
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	limit = documents.PageLimit(limit)
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var customPrompt, result, errorKind, errorMessage sql.NullString
	var retryable sql.NullBool
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.DocumentID,
		&a.UserID,
		&a.Provider,
		&a.AnalysisType,
		&customPrompt,
		&a.PromptVersion,
		&a.Status,
		&result,
		&errorKind,
		&errorMessage,
		&retryable,
		&a.CreatedAt,
		&startedAt,
		&completedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return Analysis{}, err
	}
	a.CustomPrompt = customPrompt.String
	a.ErrorKind = errorKind.String
	a.ErrorMessage = errorMessage.String
	a.Retryable = retryable.Bool
	if startedAt.Valid {
		t := startedAt.Time
		a.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if result.Valid && result.String != "" {
		var res Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return Analysis{}, fmt.Errorf("decode result for analysis %s: %w", a.ID, err)
		}
		a.Result = &res
	}
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
