package domain

import "context"

// ScorerPort is the local classifier dependency
type ScorerPort interface {
	Score(ctx context.Context, text string) (float64, error)
	Ready() bool
}

// SecondaryPort calls the remote secondary classifier. A detection is a
// valid result, not an error; transport faults are errors
type SecondaryPort interface {
	Check(ctx context.Context, message string) (SecondaryResult, error)
}

// GeneratorPort calls the downstream generation service and returns its
// response body verbatim
type GeneratorPort interface {
	Generate(ctx context.Context, message string) (string, error)
}
