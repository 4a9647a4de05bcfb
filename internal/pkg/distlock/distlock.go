// Package distlock provides per-batch mutual exclusion across worker
// processes. Redis is preferred; PostgreSQL advisory locks are the fallback
// when no Redis client is configured.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock guards one key. A DistLock is used from a single goroutine.
type DistLock interface {
	// Acquire tries once and reports whether the lock is now held.
	Acquire(ctx context.Context) (bool, error)
	// Extend pushes the expiry out to ttl. Returns ErrNotHeld when the
	// lock was lost.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release gives up the lock if it is still held.
	Release(ctx context.Context) error
}

// Locker hands out locks on one backend.
type Locker struct {
	rdb *redis.Client
	db  *sql.DB
	ttl time.Duration
}

// NewLocker uses rdb when non-nil, otherwise db advisory locks.
func NewLocker(rdb *redis.Client, db *sql.DB, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, db: db, ttl: ttl}
}

// ForBatch returns the lock serializing processing of one import batch.
func (l *Locker) ForBatch(batchID string) DistLock {
	key := "import:" + batchID
	if l.rdb != nil {
		return NewRedisLock(l.rdb, key, l.ttl)
	}
	return NewPGAdvisoryLock(l.db, key)
}

// PGAdvisoryLock uses session-scoped pg_try_advisory_lock. The lock is
// pinned to one pooled connection, so it is released if that connection
// drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&ok); err != nil {
		conn.Close()
		return false, err
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Extend is a no-op: advisory locks do not expire.
func (l *PGAdvisoryLock) Extend(context.Context, time.Duration) error {
	if l.conn == nil {
		return ErrNotHeld
	}
	return nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
