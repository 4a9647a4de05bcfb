package job

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

// Fixed progress percentages of the import phases.
const (
	ProgressQueued   = 0
	ProgressStarted  = 5
	ProgressFileRead = 10
	ProgressComplete = 100
	ProgressFailed   = 0
)

// ChunkProgress maps rows processed onto the 10-90% band.
func ChunkProgress(processed, total int) int {
	if total <= 0 {
		return ProgressFileRead
	}
	if processed > total {
		processed = total
	}
	return processed*80/total + ProgressFileRead
}

// Service reports progress and enqueues jobs.
type Service struct {
	queue Queue
	cache StatusCache
	now   func() time.Time
}

// NewService creates a job service. queue may be nil for processes that only
// report progress.
func NewService(queue Queue, cache StatusCache) *Service {
	return &Service{queue: queue, cache: cache, now: time.Now}
}

// Enqueue submits payload and marks the batch as queued.
func (s *Service) Enqueue(ctx context.Context, payload domain.JobPayload) (domain.JobHandle, error) {
	if s.queue == nil {
		return domain.JobHandle{}, fmt.Errorf("no job queue configured")
	}
	h, err := s.queue.Enqueue(ctx, payload)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("enqueue batch %s: %w", payload.BatchID, err)
	}
	s.set(ctx, payload.BatchID, domain.JobQueued, ProgressQueued, "Import queued", nil)
	return h, nil
}

// Start records that processing began.
func (s *Service) Start(ctx context.Context, batchID string) {
	s.set(ctx, batchID, domain.JobProcessing, ProgressStarted, "Processing started", nil)
}

// FileRead records that the file was parsed.
func (s *Service) FileRead(ctx context.Context, batchID string, dataRows, emptyRows int) {
	s.set(ctx, batchID, domain.JobProcessing, ProgressFileRead,
		fmt.Sprintf("File read: %d data rows, %d empty rows skipped", dataRows, emptyRows),
		map[string]interface{}{"dataRows": dataRows, "emptyRows": emptyRows})
}

// Chunk records progress through the row loop.
func (s *Service) Chunk(ctx context.Context, batchID string, processed, total int) {
	s.set(ctx, batchID, domain.JobProcessing, ChunkProgress(processed, total),
		fmt.Sprintf("Processed %d of %d rows", processed, total),
		map[string]interface{}{"processed": processed, "total": total})
}

// Complete records a finished run.
func (s *Service) Complete(ctx context.Context, batchID, message string, stats map[string]interface{}) {
	s.set(ctx, batchID, domain.JobCompleted, ProgressComplete, message, stats)
}

// Fail records a failed run with diagnostic details.
func (s *Service) Fail(ctx context.Context, batchID, message string, diagnostics map[string]interface{}) {
	s.set(ctx, batchID, domain.JobFailed, ProgressFailed, message, diagnostics)
}

// VerificationFailed records that persisted rows did not match the counts.
func (s *Service) VerificationFailed(ctx context.Context, batchID, message string, diagnostics map[string]interface{}) {
	s.set(ctx, batchID, domain.JobVerificationFailed, ProgressFailed, message, diagnostics)
}

// GetStatus returns the cached progress record, or nil.
func (s *Service) GetStatus(ctx context.Context, batchID string) (*domain.JobStatus, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.GetStatus(ctx, batchID)
}

func (s *Service) set(ctx context.Context, batchID string, state domain.JobState, progress int, message string, stats map[string]interface{}) {
	if s.cache == nil {
		return
	}
	st := domain.JobStatus{
		Status:    state,
		Progress:  progress,
		Message:   message,
		Stats:     stats,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.cache.SetStatus(ctx, batchID, st); err != nil {
		logger.Warn("[JobService] status update failed", "batch_id", batchID, "status", string(state), "error", err)
	}
}
