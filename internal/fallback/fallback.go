// Package fallback is the terminal tier of the generation pipeline: a
// rule-based response generator that never fails. It selects among template
// variants per intent category, avoids repeating recently used templates
// within a session, and adjusts the register of emotional replies by the
// independently computed sentiment label.
package fallback

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/stanchat/stan/internal/intent"
	"github.com/stanchat/stan/internal/log"
	"github.com/stanchat/stan/internal/sentiment"
)

// RepetitionWindow is the number of recent bot turns examined to avoid
// reusing the same template consecutively.
const RepetitionWindow = 3

// ErrEmptyTemplates indicates a category with no registered templates.
// This is a structural bug in the template table, not a runtime transient,
// so New refuses to construct a Generator over a broken table.
var ErrEmptyTemplates = errors.New("template table has empty category")

// Generator selects fallback replies. Randomness is injected so tests can
// seed it for determinism.
//
// Generator is safe for concurrent use; the only shared mutable state is the
// random source, guarded by a mutex. The anti-repetition window is threaded
// through each call rather than kept as hidden state, so there is no
// cross-session contention.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger log.Logger
}

// New creates a Generator seeded with seed and validates the template
// table's structural invariants: every category in the closed set has at
// least one variant and the unknown category is non-empty.
func New(seed int64, logger log.Logger) (*Generator, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	for _, cat := range intent.All() {
		if len(templates[cat]) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyTemplates, cat)
		}
	}
	if len(emptyInputTemplates) == 0 {
		return nil, fmt.Errorf("%w: empty_input", ErrEmptyTemplates)
	}
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.With("component", "fallback"),
	}, nil
}

// Generate returns a reply for the given intent category and sentiment.
// recentBotTexts is the anti-repetition window: the texts of the session's
// most recent bot turns, newest last. Generate never fails; an unrecognized
// category uses the unknown family.
func (g *Generator) Generate(cat intent.Category, label sentiment.Label, recentBotTexts []string) string {
	candidates := templates[cat]
	if len(candidates) == 0 {
		candidates = templates[intent.Unknown]
	}

	// Emotional intents pick an empathetic register when the sentiment
	// signal agrees with the intent.
	if byLabel, ok := registers[cat]; ok {
		if reg := byLabel[label]; len(reg) > 0 {
			candidates = reg
		}
	}

	return g.pick(candidates, recentBotTexts)
}

// EmptyInput returns a reply for an empty-after-trim message.
func (g *Generator) EmptyInput(recentBotTexts []string) string {
	return g.pick(emptyInputTemplates, recentBotTexts)
}

// pick selects uniformly at random among candidates, excluding templates
// present in the anti-repetition window as long as more than one candidate
// remains after exclusion. A single-template family repeats without error.
func (g *Generator) pick(candidates, recentBotTexts []string) string {
	if len(recentBotTexts) > RepetitionWindow {
		recentBotTexts = recentBotTexts[len(recentBotTexts)-RepetitionWindow:]
	}

	recent := make(map[string]bool, len(recentBotTexts))
	for _, text := range recentBotTexts {
		recent[text] = true
	}

	fresh := make([]string, 0, len(candidates))
	for _, tmpl := range candidates {
		if !recent[tmpl] {
			fresh = append(fresh, tmpl)
		}
	}
	// Repetition is unavoidable when everything was used recently.
	if len(fresh) == 0 {
		fresh = candidates
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return fresh[g.rng.Intn(len(fresh))]
}
