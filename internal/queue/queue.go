// Package queue is the Redis transport for import jobs and the progress
// cache read by status queries.
//
// Jobs move between three keys:
//
//	caseload:jobs             ready list; producers LPUSH, workers BLMOVE from the right
//	caseload:jobs:processing  in-flight list; Ack removes, Retry reschedules
//	caseload:jobs:delayed     sorted set of retries scored by due time
//
// Jobs that exhaust their attempts land on caseload:jobs:dead.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

const (
	ReadyKey      = "caseload:jobs"
	ProcessingKey = "caseload:jobs:processing"
	DelayedKey    = "caseload:jobs:delayed"
	DeadKey       = "caseload:jobs:dead"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = time.Minute
)

// Envelope wraps a payload with delivery bookkeeping.
type Envelope struct {
	JobID      string            `json:"jobId"`
	Attempts   int               `json:"attempts"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	LastError  string            `json:"lastError,omitempty"`
	Payload    domain.JobPayload `json:"payload"`
}

// Delivery is a job taken by a worker. It must be acked or retried.
type Delivery struct {
	Envelope
	raw string
}

// Config tunes retries. Zero values take the defaults.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Queue is safe for concurrent use.
type Queue struct {
	rdb *redis.Client
	cfg Config
	now func() time.Time
}

func New(rdb *redis.Client, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	return &Queue{rdb: rdb, cfg: cfg, now: time.Now}
}

// Enqueue implements job.Queue.
func (q *Queue) Enqueue(ctx context.Context, payload domain.JobPayload) (domain.JobHandle, error) {
	env := Envelope{
		JobID:      uuid.New().String(),
		EnqueuedAt: q.now().UTC(),
		Payload:    payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, ReadyKey, raw).Err(); err != nil {
		return domain.JobHandle{}, fmt.Errorf("push job: %w", err)
	}
	return domain.JobHandle{ID: env.JobID, EnqueuedAt: env.EnqueuedAt}, nil
}

// Dequeue blocks up to wait for a job and moves it to the in-flight list.
// It returns (nil, nil) when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BLMove(ctx, ReadyKey, ProcessingKey, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take job: %w", err)
	}
	d := &Delivery{raw: raw}
	if err := json.Unmarshal([]byte(raw), &d.Envelope); err != nil {
		// Unreadable jobs can never succeed.
		logger.Error("[Queue] dropping malformed job", "error", err)
		q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, ProcessingKey, 1, raw)
			p.LPush(ctx, DeadKey, raw)
			return nil
		})
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return d, nil
}

// Ack removes a finished job from the in-flight list.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.LRem(ctx, ProcessingKey, 1, d.raw).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", d.JobID, err)
	}
	return nil
}

// Backoff is the delay before retry number attempt (1-based).
func (q *Queue) Backoff(attempt int) time.Duration {
	d := q.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= q.cfg.BackoffMax {
			return q.cfg.BackoffMax
		}
	}
	return d
}

// Retry schedules the job again after a backoff, or dead-letters it once
// MaxAttempts deliveries have failed. It reports whether the job will run
// again.
func (q *Queue) Retry(ctx context.Context, d *Delivery, cause error) (bool, error) {
	env := d.Envelope
	env.Attempts++
	if cause != nil {
		env.LastError = cause.Error()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("encode job: %w", err)
	}

	again := env.Attempts < q.cfg.MaxAttempts
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, ProcessingKey, 1, d.raw)
		if again {
			due := q.now().Add(q.Backoff(env.Attempts))
			p.ZAdd(ctx, DelayedKey, redis.Z{Score: float64(due.UnixMilli()), Member: raw})
		} else {
			p.LPush(ctx, DeadKey, raw)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("retry job %s: %w", d.JobID, err)
	}
	if again {
		logger.Warn("[Queue] job scheduled for retry", "job_id", d.JobID, "batch_id", env.Payload.BatchID,
			"attempt", env.Attempts, "backoff", q.Backoff(env.Attempts).String())
	} else {
		logger.Error("[Queue] job dead-lettered", "job_id", d.JobID, "batch_id", env.Payload.BatchID,
			"attempts", env.Attempts, "error", env.LastError)
	}
	return again, nil
}

// promoteScript moves due members of the delayed set onto the ready list.
var promoteScript = redis.NewScript(`
	local due = redis.call("zrangebyscore", KEYS[1], "-inf", ARGV[1])
	for _, job in ipairs(due) do
		redis.call("zrem", KEYS[1], job)
		redis.call("lpush", KEYS[2], job)
	end
	return #due
`)

// PromoteDue makes retries whose backoff has elapsed ready again.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.rdb, []string{DelayedKey, ReadyKey}, now).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed jobs: %w", err)
	}
	return n, nil
}

// RecoverInFlight returns jobs left in the in-flight list by a crashed
// worker to the ready list. Call it before any worker on the host starts
// taking jobs.
func (q *Queue) RecoverInFlight(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.rdb.LMove(ctx, ProcessingKey, ReadyKey, "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover in-flight jobs: %w", err)
		}
		n++
	}
}

// Depths reports the size of each key.
type Depths struct {
	Ready    int64 `json:"ready"`
	InFlight int64 `json:"inFlight"`
	Delayed  int64 `json:"delayed"`
	Dead     int64 `json:"dead"`
}

func (q *Queue) Depths(ctx context.Context) (Depths, error) {
	var ready, inflight, delayed, dead *redis.IntCmd
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		ready = p.LLen(ctx, ReadyKey)
		inflight = p.LLen(ctx, ProcessingKey)
		delayed = p.ZCard(ctx, DelayedKey)
		dead = p.LLen(ctx, DeadKey)
		return nil
	})
	if err != nil {
		return Depths{}, fmt.Errorf("queue depths: %w", err)
	}
	return Depths{Ready: ready.Val(), InFlight: inflight.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}
