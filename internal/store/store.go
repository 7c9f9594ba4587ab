// Package store provides session persistence for conversation history.
//
// Two backends implement the same Store interface: a Postgres-backed store
// (postgres.go) and an in-memory store (memory.go). The backend is resolved
// once at startup (resolve.go); callers never branch on the backend per call.
//
// Concurrency contract: Append is atomic per session key. Concurrent appends
// to the same key are serialized, appends to different keys proceed
// independently. No session-level lock is held across network I/O beyond the
// single read-modify-append it protects.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role constants for Turn.Role.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// SentimentWindow is the number of recent sentiment labels retained per session.
const SentimentWindow = 10

// Storage type descriptors reported via Type() and the health endpoint.
const (
	TypeMemory   = "in-memory"
	TypePostgres = "postgres"
)

// Sentinel errors for store operations, checked with errors.Is().
var (
	// ErrEmptyTurn indicates a turn whose text is empty after trimming.
	ErrEmptyTurn = errors.New("turn text is empty")

	// ErrInvalidRole indicates a turn role outside {user, bot}.
	ErrInvalidRole = errors.New("invalid turn role")

	// ErrEmptyKey indicates an empty session key.
	ErrEmptyKey = errors.New("session key is empty")
)

// Turn is one message in a session's ordered history.
// A Turn is immutable once appended and owned exclusively by its session.
type Turn struct {
	Role      string    `json:"role"` // "user" | "bot"
	Text      string    `json:"text"`
	Sentiment string    `json:"sentiment,omitempty"` // set on user turns only
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the structural invariants of a turn.
func (t Turn) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyTurn
	}
	if t.Role != RoleUser && t.Role != RoleBot {
		return ErrInvalidRole
	}
	return nil
}

// Session is a snapshot of a session's metadata at the instant of an Append.
// It does not carry the full turn list; use History for turns.
type Session struct {
	Key        string    `json:"key"`
	TurnCount  int       `json:"turn_count"`
	Sentiments []string  `json:"sentiments"` // rolling window, newest last
	LastActive time.Time `json:"last_active"`
}

// Stats is a read-only view of the backend's session population.
// ActiveSessionsLastHour is computed at call time from last_active.
type Stats struct {
	TotalSessions          int `json:"total_sessions"`
	ActiveSessionsLastHour int `json:"active_sessions_last_hour"`
}

// Store is the key-value session abstraction over conversation turns.
//
// Implementations must never surface persistent-backend failures to callers:
// the Postgres store degrades to an in-memory mirror and logs the event.
type Store interface {
	// Append appends one turn to the session identified by key, creating the
	// session lazily on first use, and returns the updated session snapshot.
	Append(ctx context.Context, key string, turn Turn) (*Session, error)

	// History returns the most recent limit turns (or fewer), oldest-first.
	// A missing session yields an empty slice, not an error.
	History(ctx context.Context, key string, limit int) ([]Turn, error)

	// Stats reports session totals for the current backend.
	Stats(ctx context.Context) (Stats, error)

	// Type returns the storage descriptor ("postgres" or "in-memory").
	Type() string
}

// pushSentiment appends a label to a rolling window, dropping the oldest
// entry once the window is full. Empty labels (bot turns) are ignored.
func pushSentiment(window []string, label string) []string {
	if label == "" {
		return window
	}
	window = append(window, label)
	if len(window) > SentimentWindow {
		window = window[len(window)-SentimentWindow:]
	}
	return window
}
