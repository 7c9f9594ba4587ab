// Package generate produces the final reply text for a chat request by
// trying, in strict order, a chain of candidate generators with a guaranteed
// rule-based terminal tier.
package generate

import (
	"context"
	"errors"
)

// Sentinel errors for generator output, checked with errors.Is().
var (
	// ErrEmptyOutput indicates a generator returned empty or whitespace-only
	// text. Treated like any other tier failure: the pipeline moves on.
	ErrEmptyOutput = errors.New("generator returned empty output")
)

// Generator is the external-generator collaborator contract: prompt in,
// text out, may fail or time out. The pipeline does not care how the model
// behind it works.
type Generator interface {
	// Name identifies the generator in logs and health output.
	Name() string

	// Generate returns a reply for prompt or an error. Implementations must
	// honor ctx cancellation; the pipeline bounds each call with a deadline.
	Generate(ctx context.Context, prompt string) (string, error)
}
