package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/caseload-importer/internal/domain"
)

const (
	statusKeyPrefix  = "caseload:import:status:"
	DefaultStatusTTL = 24 * time.Hour
)

// StatusCache implements job.StatusCache on Redis strings with a TTL.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

func StatusKey(batchID string) string { return statusKeyPrefix + batchID }

func (c *StatusCache) SetStatus(ctx context.Context, batchID string, st domain.JobStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return c.rdb.Set(ctx, StatusKey(batchID), raw, c.ttl).Err()
}

func (c *StatusCache) GetStatus(ctx context.Context, batchID string) (*domain.JobStatus, error) {
	raw, err := c.rdb.Get(ctx, StatusKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	var st domain.JobStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}
