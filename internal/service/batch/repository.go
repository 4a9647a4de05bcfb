package batch

import (
	"context"
	"time"

	"github.com/ignite/caseload-importer/internal/domain"
)

// Repository defines the data access contract for import batches and the
// users they are attributed to.
type Repository interface {
	// CreateBatch inserts b. Returns ErrDuplicate if a batch with the same
	// checksum already exists.
	CreateBatch(ctx context.Context, b *domain.ImportBatch) error

	// GetBatch returns ErrNotFound if the batch doesn't exist.
	GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error)

	// FindBatchByChecksum returns (nil, nil) when no batch has the checksum.
	FindBatchByChecksum(ctx context.Context, checksum string) (*domain.ImportBatch, error)

	UpdateBatchStatus(ctx context.Context, id string, status domain.BatchStatus) error

	// UpdateBatchStats writes status, counters, error logs, failure details
	// and completedAt in one statement.
	UpdateBatchStats(ctx context.Context, id string, stats domain.BatchStats, completedAt *time.Time) error

	// ListBatches returns the newest batches first.
	ListBatches(ctx context.Context, limit int) ([]domain.ImportBatch, error)

	// CountActivitiesByBatch counts persisted activities linked to the batch.
	CountActivitiesByBatch(ctx context.Context, batchID string) (int, error)

	// GetUser returns ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// FindUserByEmail returns (nil, nil) when no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// InsertUser inserts u unless its email exists and reports whether a
	// row was written.
	InsertUser(ctx context.Context, u *domain.User) (bool, error)
}
