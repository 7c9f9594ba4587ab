// Package conversation orchestrates a chat request end to end:
// validate, load history, classify sentiment and extract context
// concurrently, generate a reply through the tiered pipeline, persist the
// exchange, and assemble the response record.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stanchat/stan/internal/fallback"
	"github.com/stanchat/stan/internal/generate"
	"github.com/stanchat/stan/internal/intent"
	"github.com/stanchat/stan/internal/log"
	"github.com/stanchat/stan/internal/sentiment"
	"github.com/stanchat/stan/internal/store"
	"github.com/stanchat/stan/internal/topics"
)

// Engine defaults.
const (
	// DefaultHistoryLimit is the number of turns loaded per request.
	DefaultHistoryLimit = 20

	// DefaultMaxPromptChars bounds the user text passed to external
	// generators. Longer input is truncated for prompting only; the stored
	// turn keeps the full text.
	DefaultMaxPromptChars = 1000

	// promptTurns is the number of recent turns included in the prompt.
	promptTurns = 6
)

// Sentinel errors, checked with errors.Is().
var (
	// ErrMissingMessage indicates the request carried no message field at
	// all. The only client input error; nothing is mutated.
	ErrMissingMessage = errors.New("missing message field")

	// ErrInternal indicates a structural invariant was violated (for
	// example the in-memory store failing an append). Reported, never
	// swallowed.
	ErrInternal = errors.New("internal error")
)

// Request is one inbound chat message. Message is a pointer so that a
// request without the field is distinguishable from an empty string: the
// former is a client error, the latter gets a conversational reply.
type Request struct {
	Message   *string
	SessionID string
}

// Response is the assembled chat result.
type Response struct {
	Reply     string
	SessionID string
	Sentiment string
	Context   string
}

// Health is the read-only service snapshot for the health endpoint.
type Health struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	StorageType    string `json:"storage_type"`
	TotalSessions  int    `json:"total_sessions"`
	ActiveSessions int    `json:"active_sessions"`
}

// Config tunes the engine. The zero value selects the defaults above.
type Config struct {
	HistoryLimit   int
	MaxPromptChars int
}

// Engine is the conversation orchestrator. Each request is a single
// traversal; all cross-request state lives in the Store.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	store    store.Store
	pipeline *generate.Pipeline
	fallback *fallback.Generator
	cfg      Config
	logger   log.Logger
}

// New creates an Engine over the given collaborators.
func New(st store.Store, pipe *generate.Pipeline, fb *fallback.Generator, cfg Config, logger log.Logger) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		store:    st,
		pipeline: pipe,
		fallback: fb,
		cfg:      cfg,
		logger:   logger.With("component", "conversation"),
	}
}

// Chat handles one message. The caller only ever sees a successful response
// or ErrMissingMessage; generator and storage degradation is absorbed by the
// pipeline and store. ErrInternal signals a structural bug.
func (e *Engine) Chat(ctx context.Context, req Request) (*Response, error) {
	if req.Message == nil {
		return nil, ErrMissingMessage
	}

	sessionID := req.SessionID
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}

	message := strings.TrimSpace(*req.Message)

	history, err := e.store.History(ctx, sessionID, e.cfg.HistoryLimit)
	if err != nil {
		// The store contract absorbs backend failures; an error here is a bug.
		return nil, fmt.Errorf("%w: loading history: %v", ErrInternal, err)
	}

	// Empty-after-trim input gets a conversational reply instead of an
	// error. There is no turn worth storing, so the session is untouched.
	if message == "" {
		return &Response{
			Reply:     e.fallback.EmptyInput(recentBotTexts(history)),
			SessionID: sessionID,
			Sentiment: string(sentiment.Neutral),
			Context:   topics.Summarize(history),
		}, nil
	}

	// Classification and context extraction are independent and pure; run
	// them concurrently.
	userTurn := store.Turn{Role: store.RoleUser, Text: *req.Message, Timestamp: time.Now()}
	var summary string
	summaryDone := make(chan struct{})
	go func() {
		defer close(summaryDone)
		summary = topics.Summarize(append(history, userTurn))
	}()

	label := sentiment.Classify(message)
	category := intent.Detect(message)
	<-summaryDone

	result := e.pipeline.Generate(ctx, e.buildPrompt(history, message), func() string {
		return e.fallback.Generate(category, label, recentBotTexts(history))
	})
	if result.Degraded {
		e.logger.Info("served degraded response",
			"session_id", sessionID, "model", result.Model)
	}

	userTurn.Sentiment = string(label)
	if err := e.persist(ctx, sessionID, userTurn, result.Text); err != nil {
		return nil, err
	}

	return &Response{
		Reply:     result.Text,
		SessionID: sessionID,
		Sentiment: string(label),
		Context:   summary,
	}, nil
}

// persist appends the user turn then the bot turn, in that order, to the
// same session key. The store serializes appends per key, so the pair from
// one request is never interleaved with a partial write from another.
func (e *Engine) persist(ctx context.Context, sessionID string, userTurn store.Turn, reply string) error {
	if _, err := e.store.Append(ctx, sessionID, userTurn); err != nil {
		return fmt.Errorf("%w: persisting user turn: %v", ErrInternal, err)
	}
	botTurn := store.Turn{Role: store.RoleBot, Text: reply, Timestamp: time.Now()}
	if _, err := e.store.Append(ctx, sessionID, botTurn); err != nil {
		return fmt.Errorf("%w: persisting bot turn: %v", ErrInternal, err)
	}
	return nil
}

// Health assembles the service snapshot.
func (e *Engine) Health(ctx context.Context) (*Health, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading stats: %v", ErrInternal, err)
	}
	return &Health{
		Status:         "healthy",
		ModelLoaded:    e.pipeline.ModelLoaded(),
		StorageType:    e.store.Type(),
		TotalSessions:  stats.TotalSessions,
		ActiveSessions: stats.ActiveSessionsLastHour,
	}, nil
}

// Stats exposes the store's session statistics together with the storage
// descriptor.
func (e *Engine) Stats(ctx context.Context) (string, store.Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return "", store.Stats{}, fmt.Errorf("%w: reading stats: %v", ErrInternal, err)
	}
	return e.store.Type(), stats, nil
}

// buildPrompt formats the recent history plus the current utterance for the
// external generators. The user text is bounded to keep prompt cost down;
// storage keeps the full text.
func (e *Engine) buildPrompt(history []store.Turn, message string) string {
	if len(message) > e.cfg.MaxPromptChars {
		message = message[:e.cfg.MaxPromptChars]
	}

	turns := history
	if len(turns) > promptTurns {
		turns = turns[len(turns)-promptTurns:]
	}

	var b strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case store.RoleBot:
			b.WriteString("Stan: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(turn.Text)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}

// recentBotTexts returns the texts of the most recent bot turns, newest
// last, for the fallback generator's anti-repetition window.
func recentBotTexts(history []store.Turn) []string {
	var texts []string
	for _, turn := range history {
		if turn.Role == store.RoleBot {
			texts = append(texts, turn.Text)
		}
	}
	if len(texts) > fallback.RepetitionWindow {
		texts = texts[len(texts)-fallback.RepetitionWindow:]
	}
	return texts
}
