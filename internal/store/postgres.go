package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stanchat/stan/internal/log"
)

// DefaultOpTimeout bounds every Postgres operation. On expiry the call falls
// back to the in-memory mirror instead of blocking or failing the caller.
const DefaultOpTimeout = 2 * time.Second

// DB is the subset of pgxpool.Pool the Postgres store depends on.
// Defined by the consumer so tests can inject failing fakes.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is the persistent Store backend.
//
// Every operation carries a bounded timeout. On backend error or timeout the
// operation is served by an in-memory mirror and the degradation is logged;
// the caller never observes the failure. Turns written while degraded live in
// the mirror only.
type Postgres struct {
	db        DB
	mirror    *Memory
	opTimeout time.Duration
	logger    log.Logger
}

// NewPostgres creates a Postgres store backed by db.
// opTimeout <= 0 selects DefaultOpTimeout.
func NewPostgres(db DB, opTimeout time.Duration, logger log.Logger) *Postgres {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{
		db:        db,
		mirror:    NewMemory(0, logger),
		opTimeout: opTimeout,
		logger:    logger.With("component", "store.postgres"),
	}
}

// Append implements Store. Atomicity per key comes from the transactional
// SELECT ... FOR UPDATE on the session row; concurrent appends to different
// keys lock different rows and proceed independently.
func (p *Postgres) Append(ctx context.Context, key string, turn Turn) (*Session, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := turn.Validate(); err != nil {
		return nil, err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	sess, err := p.append(opCtx, key, turn)
	if err != nil {
		p.logger.Warn("postgres append failed, degrading to in-memory mirror",
			"key", key, "error", err)
		return p.mirror.Append(ctx, key, turn)
	}
	return sess, nil
}

func (p *Postgres) append(ctx context.Context, key string, turn Turn) (*Session, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	// Row lock serializes the read-modify-append for this key only.
	var count int
	if err := tx.QueryRow(ctx,
		`SELECT turn_count FROM sessions WHERE key = $1 FOR UPDATE`, key).Scan(&count); err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}

	seq := count + 1
	if _, err := tx.Exec(ctx,
		`INSERT INTO turns (session_key, seq, role, text, sentiment, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		key, seq, turn.Role, turn.Text, turn.Sentiment, turn.Timestamp); err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	var lastActive time.Time
	if err := tx.QueryRow(ctx,
		`UPDATE sessions SET turn_count = $2, last_active = now() WHERE key = $1
		 RETURNING last_active`, key, seq).Scan(&lastActive); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	sentiments, err := recentSentiments(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("read sentiment window: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &Session{
		Key:        key,
		TurnCount:  seq,
		Sentiments: sentiments,
		LastActive: lastActive,
	}, nil
}

// recentSentiments returns the rolling sentiment window, oldest first.
func recentSentiments(ctx context.Context, tx pgx.Tx, key string) ([]string, error) {
	rows, err := tx.Query(ctx,
		`SELECT sentiment FROM turns
		 WHERE session_key = $1 AND sentiment IS NOT NULL
		 ORDER BY seq DESC LIMIT $2`, key, SentimentWindow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var window []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		window = append(window, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query returns newest first; the window is kept oldest first.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window, nil
}

// History implements Store.
func (p *Postgres) History(ctx context.Context, key string, limit int) ([]Turn, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	turns, err := p.history(opCtx, key, limit)
	if err != nil {
		p.logger.Warn("postgres history failed, serving in-memory mirror",
			"key", key, "error", err)
		return p.mirror.History(ctx, key, limit)
	}
	return turns, nil
}

func (p *Postgres) history(ctx context.Context, key string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.Query(ctx,
		`SELECT role, text, COALESCE(sentiment, ''), created_at FROM turns
		 WHERE session_key = $1 ORDER BY seq DESC LIMIT $2`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Text, &t.Sentiment, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	// Newest-first from the query; the contract is oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Stats implements Store.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	var stats Stats
	err := p.db.QueryRow(opCtx,
		`SELECT count(*),
		        count(*) FILTER (WHERE last_active > now() - interval '1 hour')
		 FROM sessions`).Scan(&stats.TotalSessions, &stats.ActiveSessionsLastHour)
	if err != nil {
		p.logger.Warn("postgres stats failed, serving in-memory mirror", "error", err)
		return p.mirror.Stats(ctx)
	}
	return stats, nil
}

// Type implements Store.
func (p *Postgres) Type() string { return TypePostgres }
