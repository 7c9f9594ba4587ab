package generate

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/stanchat/stan/internal/log"
)

// Pipeline defaults.
const (
	// DefaultTierTimeout bounds each external generator attempt. A slow
	// primary must never consume the backup or fallback tier's budget.
	DefaultTierTimeout = 3 * time.Second

	// DefaultMaxReplyLength is the display bound for reply text; longer
	// output is truncated at a sentence boundary.
	DefaultMaxReplyLength = 500

	// FallbackName is the model descriptor reported when the terminal
	// rule-based tier produced the reply.
	FallbackName = "fallback"
)

// Result is the pipeline's output. Generate never fails, so there is no
// error: the terminal tier is total by construction.
type Result struct {
	// Text is the post-processed reply, never empty.
	Text string

	// Model names the generator that produced the reply, or FallbackName.
	Model string

	// Degraded reports that at least one external tier failed before a
	// reply was produced. Invisible to end users; surfaced in logs.
	Degraded bool
}

// Pipeline tries each external generator in strict order, then the terminal
// rule-based tier. Each external attempt carries its own deadline and is
// abandoned (not retried) on failure: a model that is already struggling is
// not worth a retry storm.
type Pipeline struct {
	tiers       []Generator
	tierTimeout time.Duration
	maxReply    int
	limiter     *rate.Limiter
	logger      log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTierTimeout sets the per-attempt deadline for external generators.
func WithTierTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.tierTimeout = d
		}
	}
}

// WithMaxReplyLength sets the display bound for reply text, in runes.
func WithMaxReplyLength(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxReply = n
		}
	}
}

// WithRateLimiter rate-limits external generator attempts. The limiter is
// shared across tiers; the terminal tier is never limited.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// NewPipeline creates a pipeline over the given external tiers, tried in
// order. tiers may be empty, in which case every request is served by the
// terminal tier passed to Generate.
func NewPipeline(tiers []Generator, logger log.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	p := &Pipeline{
		tiers:       tiers,
		tierTimeout: DefaultTierTimeout,
		maxReply:    DefaultMaxReplyLength,
		logger:      logger.With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelLoaded reports whether at least one external generator is configured.
// Surfaced as the model_loaded health field.
func (p *Pipeline) ModelLoaded() bool { return len(p.tiers) > 0 }

// Generate produces the reply for prompt. terminal is the guaranteed
// rule-based tier; it is invoked when every external tier fails, times out,
// or produces degenerate output, and must not depend on ctx.
func (p *Pipeline) Generate(ctx context.Context, prompt string, terminal func() string) Result {
	degraded := false

	for _, tier := range p.tiers {
		text, err := p.tryTier(ctx, tier, prompt)
		if err != nil {
			p.logger.Warn("generator tier failed, advancing",
				"tier", tier.Name(), "error", err)
			degraded = true
			continue
		}
		return Result{
			Text:     p.postprocess(text),
			Model:    tier.Name(),
			Degraded: degraded,
		}
	}

	return Result{
		Text:     p.postprocess(terminal()),
		Model:    FallbackName,
		Degraded: degraded,
	}
}

// tryTier runs one external attempt under its own deadline.
func (p *Pipeline) tryTier(ctx context.Context, tier Generator, prompt string) (string, error) {
	tierCtx, cancel := context.WithTimeout(ctx, p.tierTimeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(tierCtx); err != nil {
			return "", err
		}
	}

	text, err := tier.Generate(tierCtx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// postprocess trims whitespace and truncates over-long replies at a sentence
// boundary rather than mid-word.
func (p *Pipeline) postprocess(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= p.maxReply {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:p.maxReply])

	// Prefer the last complete sentence within the bound.
	if idx := lastSentenceEnd(cut); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	// Otherwise cut at the last word boundary.
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}

// lastSentenceEnd returns the byte index just past the last sentence
// terminator in s, or -1 if there is none.
func lastSentenceEnd(s string) int {
	end := -1
	for _, term := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(s, term); idx >= 0 && idx+1 > end {
			end = idx + 1
		}
	}
	return end
}
