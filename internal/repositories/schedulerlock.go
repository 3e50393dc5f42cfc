package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/asgard/atc/internal/platform/db"
)

// AdvisoryLock serializes a periodic job across service instances using a
// Postgres session-level advisory lock. Acquire must return the same
// connection's unlock, so it checks out a dedicated *sql.Conn for the
// lock's lifetime rather than using the shared pool.
type AdvisoryLock struct {
	db  *db.PostgresDB
	key int64
}

// NewAdvisoryLock builds a lock bound to a single advisory key. Callers
// sharing a key across loops would serialize against each other; give each
// loop its own key.
func NewAdvisoryLock(pgDB *db.PostgresDB, key int64) *AdvisoryLock {
	return &AdvisoryLock{db: pgDB, key: key}
}

// Acquire blocks until the lock is held or ctx is cancelled. The returned
// release must be called exactly once to unlock and return the connection
// to the pool.
func (l *AdvisoryLock) Acquire(ctx context.Context) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock: checkout connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.key); err != nil {
		conn.Close()
		return nil, fmt.Errorf("advisory lock: acquire: %w", err)
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn.ExecContext(unlockCtx, "SELECT pg_advisory_unlock($1)", l.key)
		conn.Close()
	}
	return release, nil
}
