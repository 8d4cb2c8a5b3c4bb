// Package distlock provides process-wide mutual exclusion for operations
// that must run at most once across replicas, such as campaign dispatch.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a distributed lock. A Lock instance is owned by a single
// goroutine; create a new instance per critical section.
type Lock interface {
	// TryAcquire attempts to take the lock without blocking and reports
	// whether it succeeded.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// New picks the best available backend: Redis when a client is configured,
// otherwise PostgreSQL advisory locks on the primary database.
func New(rdb *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if rdb != nil {
		return NewRedisLock(rdb, key, ttl)
	}
	return NewAdvisoryLock(db, key)
}

// AdvisoryLock implements Lock with pg_try_advisory_lock. Advisory locks are
// session-scoped, so a dropped connection releases the lock, which gives
// crash-safety comparable to a Redis TTL.
type AdvisoryLock struct {
	db  *sql.DB
	key int64
}

// NewAdvisoryLock derives a stable 64-bit lock ID from the key string.
func NewAdvisoryLock(db *sql.DB, key string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &AdvisoryLock{db: db, key: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var got bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&got)
	return got, err
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	return err
}
