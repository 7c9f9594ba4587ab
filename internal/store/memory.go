package store

import (
	"context"
	"sync"
	"time"

	"github.com/stanchat/stan/internal/log"
)

// DefaultMaxSessions bounds the in-memory backend's session count.
// When the bound is reached, the session with the oldest last_active is
// evicted before a new one is created.
const DefaultMaxSessions = 1000

// memorySession is the mutable per-key state. Its mutex serializes the
// read-modify-append for that key only; unrelated sessions never contend.
type memorySession struct {
	mu         sync.Mutex
	turns      []Turn
	sentiments []string
	lastActive time.Time
}

// Memory is the in-process Store backend. It is both the standalone backend
// (when Postgres is unreachable at startup) and the degradation mirror inside
// the Postgres store.
//
// Memory is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu          sync.RWMutex // guards sessions map, not per-session state
	sessions    map[string]*memorySession
	maxSessions int
	logger      log.Logger
}

// NewMemory creates an in-memory store bounded to maxSessions.
// maxSessions <= 0 selects DefaultMaxSessions.
func NewMemory(maxSessions int, logger log.Logger) *Memory {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Memory{
		sessions:    make(map[string]*memorySession),
		maxSessions: maxSessions,
		logger:      logger.With("component", "store.memory"),
	}
}

// Append implements Store. It is atomic per key: the session's own mutex is
// held for the read-modify-append and nothing else.
func (m *Memory) Append(_ context.Context, key string, turn Turn) (*Session, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := turn.Validate(); err != nil {
		return nil, err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	sess := m.getOrCreate(key)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turn)
	sess.sentiments = pushSentiment(sess.sentiments, turn.Sentiment)
	sess.lastActive = time.Now()

	return snapshotLocked(key, sess), nil
}

// History implements Store. The returned slice is a copy; callers may retain it.
func (m *Memory) History(_ context.Context, key string, limit int) ([]Turn, error) {
	m.mu.RLock()
	sess, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := sess.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Stats implements Store. Activity is computed at call time from last_active.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-time.Hour)
	stats := Stats{TotalSessions: len(m.sessions)}
	for _, sess := range m.sessions {
		sess.mu.Lock()
		active := sess.lastActive.After(cutoff)
		sess.mu.Unlock()
		if active {
			stats.ActiveSessionsLastHour++
		}
	}
	return stats, nil
}

// Type implements Store.
func (m *Memory) Type() string { return TypeMemory }

// getOrCreate returns the session for key, creating it lazily. Creation may
// evict the oldest-last_active session once the capacity bound is reached;
// eviction only removes the map entry and never mutates another session.
func (m *Memory) getOrCreate(key string) *memorySession {
	m.mu.RLock()
	sess, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		return sess
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[key]; ok {
		return sess
	}
	if len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}
	sess = &memorySession{lastActive: time.Now()}
	m.sessions[key] = sess
	return sess
}

// evictOldestLocked removes the session with the oldest last_active.
// Caller must hold m.mu for writing.
func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, sess := range m.sessions {
		sess.mu.Lock()
		la := sess.lastActive
		sess.mu.Unlock()
		if oldestKey == "" || la.Before(oldest) {
			oldestKey = key
			oldest = la
		}
	}
	if oldestKey != "" {
		delete(m.sessions, oldestKey)
		m.logger.Debug("evicted session", "key", oldestKey, "last_active", oldest)
	}
}

// snapshotLocked builds a Session snapshot. Caller must hold sess.mu.
func snapshotLocked(key string, sess *memorySession) *Session {
	sentiments := make([]string, len(sess.sentiments))
	copy(sentiments, sess.sentiments)
	return &Session{
		Key:        key,
		TurnCount:  len(sess.turns),
		Sentiments: sentiments,
		LastActive: sess.lastActive,
	}
}
