package fallback

import (
	"testing"

	"github.com/stanchat/stan/internal/intent"
	"github.com/stanchat/stan/internal/log"
	"github.com/stanchat/stan/internal/sentiment"
)

func newGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	g, err := New(seed, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNew_ValidatesTemplateTable(t *testing.T) {
	if _, err := New(1, log.NewNop()); err != nil {
		t.Fatalf("default table must satisfy the structural invariant: %v", err)
	}
}

func TestGenerate_NeverEmpty(t *testing.T) {
	g := newGenerator(t, 42)

	for _, cat := range intent.All() {
		for _, label := range []sentiment.Label{sentiment.Positive, sentiment.Negative, sentiment.Questioning, sentiment.Neutral} {
			if got := g.Generate(cat, label, nil); got == "" {
				t.Errorf("empty reply for category %q label %q", cat, label)
			}
		}
	}
}

func TestGenerate_UnrecognizedCategoryUsesUnknown(t *testing.T) {
	g := newGenerator(t, 42)

	got := g.Generate(intent.Category("telepathy"), sentiment.Neutral, nil)
	found := false
	for _, tmpl := range templates[intent.Unknown] {
		if got == tmpl {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a reply from the unknown family, got %q", got)
	}
}

func TestGenerate_AntiRepetition(t *testing.T) {
	g := newGenerator(t, 7)

	variants := len(templates[intent.Greeting])
	if variants < 2 {
		t.Fatal("test requires at least two greeting templates")
	}

	var window []string
	prev := ""
	for i := 0; i < 20; i++ {
		got := g.Generate(intent.Greeting, sentiment.Neutral, window)
		if got == prev {
			t.Fatalf("call %d repeated the previous template %q", i, got)
		}
		prev = got
		window = append(window, got)
		if len(window) > RepetitionWindow {
			window = window[1:]
		}
	}
}

func TestGenerate_SeededDeterminism(t *testing.T) {
	a := newGenerator(t, 99)
	b := newGenerator(t, 99)

	for i := 0; i < 10; i++ {
		ra := a.Generate(intent.JokeRequest, sentiment.Neutral, nil)
		rb := b.Generate(intent.JokeRequest, sentiment.Neutral, nil)
		if ra != rb {
			t.Fatalf("call %d diverged under the same seed: %q vs %q", i, ra, rb)
		}
	}
}

func TestGenerate_EmpatheticRegister(t *testing.T) {
	g := newGenerator(t, 42)

	// Negative sentiment on a negative-emotion intent selects the
	// acknowledging register.
	got := g.Generate(intent.EmotionNegative, sentiment.Negative, nil)
	inRegister := false
	for _, tmpl := range registers[intent.EmotionNegative][sentiment.Negative] {
		if got == tmpl {
			inRegister = true
		}
	}
	if !inRegister {
		t.Errorf("expected acknowledging register for negative/negative, got %q", got)
	}

	// Mismatched sentiment falls back to the category default family.
	got = g.Generate(intent.EmotionNegative, sentiment.Questioning, nil)
	inDefault := false
	for _, tmpl := range templates[intent.EmotionNegative] {
		if got == tmpl {
			inDefault = true
		}
	}
	if !inDefault {
		t.Errorf("expected default family for negative/questioning, got %q", got)
	}
}

func TestEmptyInput(t *testing.T) {
	g := newGenerator(t, 42)

	got := g.EmptyInput(nil)
	if got == "" {
		t.Fatal("empty-input reply must not be empty")
	}
	found := false
	for _, tmpl := range emptyInputTemplates {
		if got == tmpl {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a reply from the empty-input family, got %q", got)
	}
}

func TestPick_AllRecentlyUsed_RepeatsWithoutError(t *testing.T) {
	g := newGenerator(t, 42)

	// Window covers the entire farewell family (3 variants, window of 3):
	// repetition is unavoidable and must not error or return empty.
	window := append([]string(nil), templates[intent.Farewell]...)
	got := g.Generate(intent.Farewell, sentiment.Neutral, window)
	if got == "" {
		t.Error("expected a reply even when every template was recently used")
	}
}

func TestGenerate_ConcurrentUse(t *testing.T) {
	g := newGenerator(t, 42)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if got := g.Generate(intent.Unknown, sentiment.Neutral, nil); got == "" {
					t.Error("empty reply under concurrency")
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
