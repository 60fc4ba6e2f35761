package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analysis jobs. Per-job updates
// must be atomic: a poller never observes a torn status/progress pair.
// Writes against terminal jobs are ignored, and progress never decreases.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	SetRunning(ctx context.Context, analysisID string, startedAt time.Time) error
	UpdateProgress(ctx context.Context, analysisID string, progress int, companyHint string) error
	SetResult(ctx context.Context, analysisID string, result NormalizedResult, completedAt time.Time) error
	SetFailed(ctx context.Context, analysisID, message string, completedAt time.Time) error
}
