package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importer"
	"github.com/ignite/caseload-importer/internal/importerr"
	"github.com/ignite/caseload-importer/internal/pkg/distlock"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
	"github.com/ignite/caseload-importer/internal/queue"
)

// =============================================================================
// IMPORT WORKER POOL: Consumes Queued Imports
// =============================================================================
// Each consumer takes one job at a time from the Redis queue, holds the
// batch lock while the orchestrator runs, and acks or retries the delivery.
// A background loop promotes retries whose backoff has elapsed. Jobs left
// in flight by a crashed process are returned to the queue on startup.

const (
	DefaultConcurrency     = 2
	DefaultPollInterval    = 5 * time.Second
	DefaultPromoteInterval = time.Second
	DefaultLockTTL         = 10 * time.Minute
)

// ErrBatchLocked means another worker holds the batch.
var ErrBatchLocked = errors.New("batch is being processed by another worker")

// Processor runs one import job.
type Processor interface {
	Process(ctx context.Context, payload domain.JobPayload, opts importer.ProcessOptions) (*importer.ProcessResult, error)
}

// Locks hands out per-batch locks.
type Locks interface {
	ForBatch(batchID string) distlock.DistLock
}

// Config tunes the pool. Zero values take the defaults.
type Config struct {
	Concurrency     int
	PollInterval    time.Duration
	PromoteInterval time.Duration
	LockTTL         time.Duration
	Process         importer.ProcessOptions
}

// Pool consumes import jobs with a fixed number of goroutines.
type Pool struct {
	queue *queue.Queue
	proc  Processor
	locks Locks
	cfg   Config
}

func NewPool(q *queue.Queue, proc Processor, locks Locks, cfg Config) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = DefaultPromoteInterval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &Pool{queue: q, proc: proc, locks: locks, cfg: cfg}
}

// Run blocks until ctx is cancelled or a consumer hits a queue error it
// cannot recover from.
func (p *Pool) Run(ctx context.Context) error {
	n, err := p.queue.RecoverInFlight(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Warn("[Worker] recovered in-flight jobs", "count", n)
	}
	logger.Info("[Worker] starting", "concurrency", p.cfg.Concurrency,
		"poll_interval", p.cfg.PollInterval.String(), "lock_ttl", p.cfg.LockTTL.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.promoteLoop(gctx) })
	for i := 0; i < p.cfg.Concurrency; i++ {
		id := i
		g.Go(func() error { return p.consume(gctx, id) })
	}
	err = g.Wait()
	logger.Info("[Worker] stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pool) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.queue.PromoteDue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("[Worker] promote failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("[Worker] promoted delayed jobs", "count", n)
			}
		}
	}
}

func (p *Pool) consume(ctx context.Context, id int) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		d, err := p.queue.Dequeue(ctx, p.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Malformed jobs are already dead-lettered by Dequeue.
			logger.Warn("[Worker] dequeue failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}
		if d == nil {
			continue
		}
		p.handle(ctx, id, d)
	}
}

// handle processes one delivery and always settles it with Ack or Retry.
func (p *Pool) handle(ctx context.Context, id int, d *queue.Delivery) {
	batchID := d.Payload.BatchID
	// Settling must survive shutdown so the delivery is not stranded.
	settleCtx := context.WithoutCancel(ctx)

	lock := p.locks.ForBatch(batchID)
	ok, err := lock.Acquire(ctx)
	if err == nil && !ok {
		err = ErrBatchLocked
	}
	if err != nil {
		logger.Warn("[Worker] batch lock unavailable", "worker", id, "batch_id", batchID, "error", err)
		p.retry(settleCtx, d, err)
		return
	}
	defer func() {
		if err := lock.Release(settleCtx); err != nil {
			logger.Warn("[Worker] lock release failed", "batch_id", batchID, "error", err)
		}
	}()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.keepAlive(jobCtx, cancel, lock, batchID)

	logger.Info("[Worker] processing import", "worker", id, "batch_id", batchID,
		"job_id", d.JobID, "attempt", d.Attempts+1)
	res, err := p.proc.Process(jobCtx, d.Payload, p.cfg.Process)

	switch {
	case err != nil && importerr.IsRetryable(err) && ctx.Err() == nil:
		p.retry(settleCtx, d, err)
	default:
		if err != nil {
			logger.Error("[Worker] import failed", "batch_id", batchID, "error", err)
		} else if res != nil {
			logger.Info("[Worker] import finished", "batch_id", batchID, "status", string(res.Status),
				"successful", res.SuccessfulRecords, "failed", res.FailedRecords,
				"duplicates", res.DuplicatesSkipped)
		}
		if err := p.queue.Ack(settleCtx, d); err != nil {
			logger.Error("[Worker] ack failed", "job_id", d.JobID, "error", err)
		}
	}
}

func (p *Pool) retry(ctx context.Context, d *queue.Delivery, cause error) {
	if _, err := p.queue.Retry(ctx, d, cause); err != nil {
		logger.Error("[Worker] retry failed", "job_id", d.JobID, "error", err)
	}
}

// keepAlive extends the batch lock until ctx ends, cancelling the job if
// the lock is lost.
func (p *Pool) keepAlive(ctx context.Context, cancel context.CancelFunc, lock distlock.DistLock, batchID string) {
	ticker := time.NewTicker(p.cfg.LockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := lock.Extend(ctx, p.cfg.LockTTL)
			if err == nil || ctx.Err() != nil {
				continue
			}
			logger.Error("[Worker] batch lock lost, cancelling import", "batch_id", batchID, "error", err)
			if errors.Is(err, distlock.ErrNotHeld) {
				cancel()
				return
			}
		}
	}
}

