package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for asynchronous analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error
	Complete(ctx context.Context, analysisID string, result Result, completedAt time.Time) error
	Fail(ctx context.Context, analysisID, errorKind, errorMessage string, retryable bool, completedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}
