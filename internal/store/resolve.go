package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stanchat/stan/internal/log"
)

// DefaultProbeTimeout bounds the one-time connectivity probe at startup.
const DefaultProbeTimeout = 3 * time.Second

// Resolve selects the storage backend once for the process lifetime.
//
// It probes the configured Postgres instance with a short ping. On success it
// returns the Postgres store; on any failure it logs the degradation and
// returns the in-memory store permanently — there are no reconnection
// attempts later (no retry storms against a database that is down).
//
// The returned cleanup function releases the connection pool and is a no-op
// for the in-memory backend.
func Resolve(ctx context.Context, connURL string, maxSessions int, opTimeout, probeTimeout time.Duration, logger log.Logger) (Store, func()) {
	if logger == nil {
		logger = log.NewNop()
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	if connURL == "" {
		logger.Info("no database configured, using in-memory session storage")
		return NewMemory(maxSessions, logger), func() {}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	pool, err := pgxpool.New(probeCtx, connURL)
	if err != nil {
		logger.Warn("postgres pool setup failed, using in-memory session storage", "error", err)
		return NewMemory(maxSessions, logger), func() {}
	}
	if err := pool.Ping(probeCtx); err != nil {
		pool.Close()
		logger.Warn("postgres unreachable, using in-memory session storage", "error", err)
		return NewMemory(maxSessions, logger), func() {}
	}

	logger.Info("postgres session storage ready")
	return NewPostgres(pool, opTimeout, logger), pool.Close
}
