package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stanchat/stan/internal/fallback"
	"github.com/stanchat/stan/internal/generate"
	"github.com/stanchat/stan/internal/log"
	"github.com/stanchat/stan/internal/sentiment"
	"github.com/stanchat/stan/internal/store"
)

// ============================================================================
// Fixtures
// ============================================================================

// scriptedGenerator implements generate.Generator with a fixed outcome.
type scriptedGenerator struct {
	name    string
	text    string
	err     error
	prompts []string
}

func (s *scriptedGenerator) Name() string { return s.name }

func (s *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

// newEngine wires an engine over a fresh in-memory store and the given
// external tiers.
func newEngine(t *testing.T, tiers ...generate.Generator) (*Engine, *store.Memory) {
	t.Helper()

	mem := store.NewMemory(0, log.NewNop())
	fb, err := fallback.New(1, log.NewNop())
	if err != nil {
		t.Fatalf("creating fallback generator: %v", err)
	}
	pipe := generate.NewPipeline(tiers, log.NewNop())
	return New(mem, pipe, fb, Config{}, log.NewNop()), mem
}

func msg(s string) Request {
	return Request{Message: &s}
}

func msgIn(s, session string) Request {
	return Request{Message: &s, SessionID: session}
}

// ============================================================================
// Validation and session identity
// ============================================================================

func TestChat_MissingMessage(t *testing.T) {
	engine, mem := newEngine(t)

	_, err := engine.Chat(context.Background(), Request{})
	if !errors.Is(err, ErrMissingMessage) {
		t.Fatalf("expected ErrMissingMessage, got %v", err)
	}

	stats, _ := mem.Stats(context.Background())
	if stats.TotalSessions != 0 {
		t.Errorf("rejected request must not create sessions, got %d", stats.TotalSessions)
	}
}

func TestChat_GeneratesSessionID(t *testing.T) {
	engine, _ := newEngine(t, &scriptedGenerator{name: "primary", text: "hello"})

	resp, err := engine.Chat(context.Background(), msg("Hello there"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session identifier")
	}

	// A second blank-session request must get its own session.
	resp2, err := engine.Chat(context.Background(), msg("Hello again"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp2.SessionID == resp.SessionID {
		t.Error("blank session requests must not share a session")
	}
}

func TestChat_ReusesProvidedSession(t *testing.T) {
	engine, mem := newEngine(t, &scriptedGenerator{name: "primary", text: "hello"})
	ctx := context.Background()

	for _, text := range []string{"first", "second"} {
		resp, err := engine.Chat(ctx, msgIn(text, "alice"))
		if err != nil {
			t.Fatalf("Chat(%q): %v", text, err)
		}
		if resp.SessionID != "alice" {
			t.Errorf("expected session alice, got %q", resp.SessionID)
		}
	}

	history, err := mem.History(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 turns after 2 exchanges, got %d", len(history))
	}
}

// ============================================================================
// Persistence ordering and isolation
// ============================================================================

func TestChat_PersistsUserThenBotInOrder(t *testing.T) {
	engine, mem := newEngine(t, &scriptedGenerator{name: "primary", text: "the reply"})
	ctx := context.Background()

	if _, err := engine.Chat(ctx, msgIn("question one", "s1")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := engine.Chat(ctx, msgIn("question two", "s1")); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	history, err := mem.History(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}

	wantRoles := []string{store.RoleUser, store.RoleBot, store.RoleUser, store.RoleBot}
	wantTexts := []string{"question one", "the reply", "question two", "the reply"}
	if len(history) != len(wantRoles) {
		t.Fatalf("expected %d turns, got %d", len(wantRoles), len(history))
	}
	for i, turn := range history {
		if turn.Role != wantRoles[i] || turn.Text != wantTexts[i] {
			t.Errorf("turn %d: got (%s, %q), want (%s, %q)",
				i, turn.Role, turn.Text, wantRoles[i], wantTexts[i])
		}
	}
}

func TestChat_SessionsAreIsolated(t *testing.T) {
	engine, mem := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})
	ctx := context.Background()

	if _, err := engine.Chat(ctx, msgIn("about the weather", "a")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := engine.Chat(ctx, msgIn("about programming", "b")); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	historyA, _ := mem.History(ctx, "a", 10)
	for _, turn := range historyA {
		if strings.Contains(turn.Text, "programming") {
			t.Errorf("session a leaked session b's turn: %q", turn.Text)
		}
	}
}

func TestChat_StoresSentimentOnUserTurn(t *testing.T) {
	engine, mem := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})
	ctx := context.Background()

	if _, err := engine.Chat(ctx, msgIn("This is terrible, I am so sad", "s")); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	history, _ := mem.History(ctx, "s", 10)
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Sentiment != string(sentiment.Negative) {
		t.Errorf("user turn sentiment = %q, want %q", history[0].Sentiment, sentiment.Negative)
	}
	if history[1].Sentiment != "" {
		t.Errorf("bot turn must not carry a sentiment, got %q", history[1].Sentiment)
	}
}

// ============================================================================
// Response assembly
// ============================================================================

func TestChat_ResponseFields(t *testing.T) {
	engine, _ := newEngine(t, &scriptedGenerator{name: "primary", text: "Nice day indeed."})

	resp, err := engine.Chat(context.Background(), msg("The weather is so sunny and great today!"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Reply == "" {
		t.Error("reply must never be empty")
	}
	if resp.Sentiment != string(sentiment.Positive) {
		t.Errorf("sentiment = %q, want positive", resp.Sentiment)
	}
	if !strings.Contains(resp.Context, "weather") {
		t.Errorf("context must reflect the current utterance, got %q", resp.Context)
	}
}

func TestChat_ContextAccumulatesTopics(t *testing.T) {
	engine, _ := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})
	ctx := context.Background()

	if _, err := engine.Chat(ctx, msgIn("Is it going to rain tomorrow?", "s")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	resp, err := engine.Chat(ctx, msgIn("Also, I love writing code in my spare time", "s"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if !strings.Contains(resp.Context, "weather") || !strings.Contains(resp.Context, "programming") {
		t.Errorf("context must cover recent topics, got %q", resp.Context)
	}
}

func TestChat_ContextWithoutTopics(t *testing.T) {
	engine, _ := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})

	resp, err := engine.Chat(context.Background(), msg("hmm okay then"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(resp.Context, "general conversation") {
		t.Errorf("topic-free exchange must report general conversation, got %q", resp.Context)
	}
}

func TestChat_PromptCarriesRecentHistory(t *testing.T) {
	primary := &scriptedGenerator{name: "primary", text: "reply"}
	engine, _ := newEngine(t, primary)
	ctx := context.Background()

	if _, err := engine.Chat(ctx, msgIn("my first message", "s")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := engine.Chat(ctx, msgIn("my second message", "s")); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(primary.prompts) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(primary.prompts))
	}
	last := primary.prompts[1]
	if !strings.Contains(last, "my first message") {
		t.Errorf("prompt must include prior turns, got %q", last)
	}
	if !strings.HasSuffix(last, "User: my second message") {
		t.Errorf("prompt must end with the current utterance, got %q", last)
	}
}

// ============================================================================
// Degradation
// ============================================================================

func TestChat_AllGeneratorsFail_OnTopicFallback(t *testing.T) {
	engine, mem := newEngine(t,
		&scriptedGenerator{name: "primary", err: errors.New("down")},
		&scriptedGenerator{name: "backup", err: errors.New("down")},
	)
	ctx := context.Background()

	resp, err := engine.Chat(ctx, msgIn("Can you tell me a joke?", "s"))
	if err != nil {
		t.Fatalf("full generator failure must not surface to the caller: %v", err)
	}
	if resp.Reply == "" {
		t.Fatal("reply must never be empty")
	}

	// The rule tier keys off the detected intent, so the reply should be
	// joke-flavored rather than a generic stub.
	lower := strings.ToLower(resp.Reply)
	if !strings.Contains(lower, "atoms") && !strings.Contains(lower, "computer") &&
		!strings.Contains(lower, "scarecrow") && !strings.Contains(lower, "impasta") {
		t.Errorf("expected a joke-intent reply, got %q", resp.Reply)
	}

	// The exchange still persists.
	history, _ := mem.History(ctx, "s", 10)
	if len(history) != 2 {
		t.Errorf("degraded exchange must still persist both turns, got %d", len(history))
	}
}

func TestChat_NoExternalGenerators(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Chat(context.Background(), msg("Hello!"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Reply == "" {
		t.Error("rule-only operation must still produce a reply")
	}
}

// ============================================================================
// Empty input
// ============================================================================

func TestChat_EmptyMessage(t *testing.T) {
	engine, mem := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})
	ctx := context.Background()

	resp, err := engine.Chat(ctx, msgIn("   ", "s"))
	if err != nil {
		t.Fatalf("blank input is not an error: %v", err)
	}
	if resp.Reply == "" {
		t.Error("blank input must still get a reply")
	}
	if resp.Sentiment != string(sentiment.Neutral) {
		t.Errorf("blank input sentiment = %q, want neutral", resp.Sentiment)
	}

	// Nothing worth storing.
	history, _ := mem.History(ctx, "s", 10)
	if len(history) != 0 {
		t.Errorf("blank input must not append turns, got %d", len(history))
	}
}

// ============================================================================
// Health and stats
// ============================================================================

func TestHealth(t *testing.T) {
	engine, _ := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})
	ctx := context.Background()

	if _, err := engine.Chat(ctx, msgIn("hello", "s")); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	health, err := engine.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if !health.ModelLoaded {
		t.Error("expected model_loaded with an external tier configured")
	}
	if health.StorageType != store.TypeMemory {
		t.Errorf("storage type = %q, want %q", health.StorageType, store.TypeMemory)
	}
	if health.TotalSessions != 1 || health.ActiveSessions != 1 {
		t.Errorf("expected 1 total / 1 active session, got %d / %d",
			health.TotalSessions, health.ActiveSessions)
	}
}

func TestHealth_NoExternalTiers(t *testing.T) {
	engine, _ := newEngine(t)

	health, err := engine.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.ModelLoaded {
		t.Error("model_loaded must be false without external tiers")
	}
}

func TestStats(t *testing.T) {
	engine, _ := newEngine(t, &scriptedGenerator{name: "primary", text: "reply"})
	ctx := context.Background()

	for _, session := range []string{"a", "b", "c"} {
		if _, err := engine.Chat(ctx, msgIn("hello", session)); err != nil {
			t.Fatalf("Chat: %v", err)
		}
	}

	storageType, stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if storageType != store.TypeMemory {
		t.Errorf("storage type = %q, want %q", storageType, store.TypeMemory)
	}
	if stats.TotalSessions != 3 {
		t.Errorf("total sessions = %d, want 3", stats.TotalSessions)
	}
	if stats.ActiveSessionsLastHour != 3 {
		t.Errorf("active sessions = %d, want 3", stats.ActiveSessionsLastHour)
	}
}
