package scorer

import "context"

// Static returns a fixed probability for every message. Used by the local
// dev stubs and tests; it never fails once constructed
type Static struct {
	probability float64
}

// NewStatic constructs a Static scorer
func NewStatic(probability float64) *Static { return &Static{probability: probability} }

// Load is a no-op
func (s *Static) Load(context.Context) error { return nil }

// Ready always reports true
func (s *Static) Ready() bool { return true }

// Score returns the fixed probability
func (s *Static) Score(context.Context, string) (float64, error) {
	return s.probability, nil
}
