package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// CreateInput describes a new batch.
type CreateInput struct {
	Filename  string
	FileSize  int64
	Checksum  string
	CreatedBy string
}

// Service implements batch business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a batch service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateBatch records a PENDING batch.
func (s *Service) CreateBatch(ctx context.Context, in CreateInput) (*domain.ImportBatch, error) {
	if strings.TrimSpace(in.Checksum) == "" {
		return nil, fmt.Errorf("checksum is required")
	}
	now := s.now().UTC()
	b := &domain.ImportBatch{
		ID:           uuid.New().String(),
		Filename:     in.Filename,
		FileSize:     in.FileSize,
		FileChecksum: in.Checksum,
		Status:       domain.BatchPending,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateBatch(ctx, b); err != nil {
		return nil, err
	}
	logger.Info("[BatchService] batch created", "batch_id", b.ID, "filename", b.Filename, "file_size", b.FileSize)
	return b, nil
}

// UpdateBatchStatus moves a batch to status. Terminal batches do not move.
func (s *Service) UpdateBatchStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	b, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	if b.Status.IsTerminal() && b.Status != status {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, b.Status, status)
	}
	return s.repo.UpdateBatchStatus(ctx, id, status)
}

// UpdateBatchWithStats applies status and all counters in one update, and
// stamps completedAt when the status is terminal.
func (s *Service) UpdateBatchWithStats(ctx context.Context, id string, stats domain.BatchStats) error {
	if len(stats.ErrorLogs) > domain.MaxErrorLogs {
		stats.ErrorLogs = stats.ErrorLogs[:domain.MaxErrorLogs]
	}
	var completedAt *time.Time
	if stats.Status.IsTerminal() {
		t := s.now().UTC()
		completedAt = &t
	}
	if err := s.repo.UpdateBatchStats(ctx, id, stats, completedAt); err != nil {
		return fmt.Errorf("update batch %s: %w", id, err)
	}
	return nil
}

// GetBatch returns ErrNotFound if the batch doesn't exist.
func (s *Service) GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	return s.repo.GetBatch(ctx, id)
}

// GetBatchHistory returns recent batches, newest first. limit defaults to
// DefaultHistoryLimit and is capped at MaxHistoryLimit.
func (s *Service) GetBatchHistory(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.ListBatches(ctx, limit)
}

// CheckForDuplicateImport returns the earlier batch with the same checksum,
// in any status, or nil.
func (s *Service) CheckForDuplicateImport(ctx context.Context, checksum string) (*domain.ImportBatch, error) {
	return s.repo.FindBatchByChecksum(ctx, checksum)
}

// CountPersistedActivities counts the activities written under batchID.
func (s *Service) CountPersistedActivities(ctx context.Context, batchID string) (int, error) {
	return s.repo.CountActivitiesByBatch(ctx, batchID)
}

// GetOrCreateSystemUser returns the fallback user imports are attributed to.
func (s *Service) GetOrCreateSystemUser(ctx context.Context) (*domain.User, error) {
	u, err := s.repo.FindUserByEmail(ctx, domain.SystemUserEmail)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &domain.User{
		ID:        uuid.New().String(),
		Email:     domain.SystemUserEmail,
		Name:      "System Import",
		Role:      "system",
		CreatedAt: s.now().UTC(),
	}
	created, err := s.repo.InsertUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create system user: %w", err)
	}
	if created {
		return u, nil
	}
	u, err = s.repo.FindUserByEmail(ctx, domain.SystemUserEmail)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("system user: %w", ErrUserNotFound)
	}
	return u, nil
}

// ResolveUser returns the user with id, or the system user when id is empty
// or unknown.
func (s *Service) ResolveUser(ctx context.Context, id string) (*domain.User, error) {
	if id != "" {
		u, err := s.repo.GetUser(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		logger.Warn("[BatchService] unknown user, attributing to system user", "user_id", id)
	}
	return s.GetOrCreateSystemUser(ctx)
}

// AppendErrorLogs appends entries to logs, keeping at most
// domain.MaxErrorLogs entries (the earliest ones).
func AppendErrorLogs(logs []domain.ErrorLogEntry, entries ...domain.ErrorLogEntry) []domain.ErrorLogEntry {
	room := domain.MaxErrorLogs - len(logs)
	if room <= 0 {
		return logs
	}
	if len(entries) > room {
		entries = entries[:room]
	}
	return append(logs, entries...)
}
