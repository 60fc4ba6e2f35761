package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres. Progress clamping and terminal
// immutability are enforced in SQL so concurrent writers on different
// instances behave the same as the memory repo.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis job.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
    id,
    status,
    progress,
    company_detected,
    processing_method,
    state,
    postcode,
    storage_key,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		analysis.ID,
		analysis.Status,
		analysis.Progress,
		nullIfEmpty(analysis.CompanyDetected),
		analysis.ProcessingMethod,
		nullIfEmpty(analysis.State),
		nullIfEmpty(analysis.Postcode),
		nullIfEmpty(analysis.StorageKey),
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	return err
}

// GetByID returns an analysis by its ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, status, progress, company_detected, processing_method, state, postcode, storage_key, result, error_message, created_at, updated_at, started_at, completed_at
FROM analyses
WHERE id = $1`

	var analysis Analysis
	var companyDetected, state, postcode, storageKey, errorMessage sql.NullString
	var resultRaw []byte
	var startedAt, completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&analysis.ID,
		&analysis.Status,
		&analysis.Progress,
		&companyDetected,
		&analysis.ProcessingMethod,
		&state,
		&postcode,
		&storageKey,
		&resultRaw,
		&errorMessage,
		&analysis.CreatedAt,
		&analysis.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if companyDetected.Valid {
		analysis.CompanyDetected = companyDetected.String
	}
	if state.Valid {
		analysis.State = state.String
	}
	if postcode.Valid {
		analysis.Postcode = postcode.String
	}
	if storageKey.Valid {
		analysis.StorageKey = storageKey.String
	}
	if errorMessage.Valid {
		analysis.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		analysis.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		analysis.CompletedAt = &completedAt.Time
	}
	if len(resultRaw) > 0 {
		var result NormalizedResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return Analysis{}, fmt.Errorf("decode stored result: %w", err)
		}
		analysis.Result = &result
	}
	return analysis, nil
}

// SetRunning transitions a pending analysis to running.
func (r *PGRepo) SetRunning(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, started_at = $3, updated_at = NOW()
WHERE id = $1 AND status NOT IN ($4, $5)`

	return r.existingRowUpdate(ctx, analysisID, query, analysisID, StatusRunning, startedAt, StatusCompleted, StatusFailed)
}

// UpdateProgress raises the progress value and records a company hint.
func (r *PGRepo) UpdateProgress(ctx context.Context, analysisID string, progress int, companyHint string) error {
	const query = `
UPDATE analyses
SET progress = GREATEST(progress, $2),
    company_detected = COALESCE(NULLIF($3, ''), company_detected),
    updated_at = NOW()
WHERE id = $1 AND status NOT IN ($4, $5)`

	return r.existingRowUpdate(ctx, analysisID, query, analysisID, progress, companyHint, StatusCompleted, StatusFailed)
}

// SetResult completes the analysis with its normalized result.
func (r *PGRepo) SetResult(ctx context.Context, analysisID string, result NormalizedResult, completedAt time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	const query = `
UPDATE analyses
SET status = $2, progress = 100, result = $3, completed_at = $4, updated_at = NOW()
WHERE id = $1 AND status NOT IN ($5, $6)`

	return r.existingRowUpdate(ctx, analysisID, query, analysisID, StatusCompleted, payload, completedAt, StatusCompleted, StatusFailed)
}

// SetFailed marks the analysis as failed.
func (r *PGRepo) SetFailed(ctx context.Context, analysisID, message string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, error_message = $3, completed_at = $4, updated_at = NOW()
WHERE id = $1 AND status NOT IN ($5, $6)`

	return r.existingRowUpdate(ctx, analysisID, query, analysisID, StatusFailed, message, completedAt, StatusCompleted, StatusFailed)
}

// existingRowUpdate runs a guarded update. Zero rows affected is only an
// error when the job does not exist at all; updates skipped by the terminal
// guard are a no-op, matching the memory repo.
func (r *PGRepo) existingRowUpdate(ctx context.Context, analysisID, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM analyses WHERE id = $1)`, analysisID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func nullIfEmpty(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
