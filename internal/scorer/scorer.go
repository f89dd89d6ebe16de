// Package scorer wraps a pre-trained text classifier behind a narrow port.
//
// The classifier's learning algorithm is external to this repo; the gateway
// only depends on the score contract: text in, blocked-class probability in
// [0,1] out. An unloadable or unscoreable model surfaces ErrUnavailable,
// which the pipeline must never confuse with any probability
package scorer

import (
	"context"

	perr "gatekeep/internal/platform/errors"
)

// ErrUnavailable reports that the model could not be loaded or scored.
// Distinguishable from every valid probability by construction
var ErrUnavailable = perr.New(perr.ErrorCodeUnavailable, "scorer unavailable")

// Scorer is the scoring port consumed by the pipeline
type Scorer interface {
	// Load makes the model scoreable. Loading is idempotent and attempted at
	// most once per process unless forced via Reload
	Load(ctx context.Context) error

	// Score returns the probability that text belongs to the blocked class.
	// Deterministic for fixed model state; returns ErrUnavailable when the
	// model is not loaded
	Score(ctx context.Context, text string) (float64, error)

	// Ready reports whether the model is loaded and scoreable
	Ready() bool
}
