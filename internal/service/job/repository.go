package job

import (
	"context"

	"github.com/ignite/caseload-importer/internal/domain"
)

// Queue is the job transport contract.
type Queue interface {
	Enqueue(ctx context.Context, payload domain.JobPayload) (domain.JobHandle, error)
}

// StatusCache stores the latest progress record per batch.
type StatusCache interface {
	SetStatus(ctx context.Context, batchID string, status domain.JobStatus) error
	// GetStatus returns (nil, nil) when nothing is cached for the batch.
	GetStatus(ctx context.Context, batchID string) (*domain.JobStatus, error)
}
