// Package domain defines the core types and ports for the screen service
package domain

// Kind discriminates the single outcome a screening request produces.
// Everything upstream (status code, body) is a rendering of this value
type Kind uint8

const (
	// KindPassed carries the generation service's response verbatim
	KindPassed Kind = iota
	// KindBlockedPrimary is a block decided by the local scorer threshold
	KindBlockedPrimary
	// KindBlockedSecondary is a block decided by the secondary classifier's
	// detection signal
	KindBlockedSecondary
	// KindUnavailable is the safe degraded outcome: a dependency failed and
	// the message was never allowed through unscored
	KindUnavailable
)

// String renders the kind for logs
func (k Kind) String() string {
	switch k {
	case KindPassed:
		return "passed"
	case KindBlockedPrimary:
		return "blocked_primary"
	case KindBlockedSecondary:
		return "blocked_secondary"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the request-scoped pipeline result
type Outcome struct {
	Kind Kind

	// Response is the body to hand back on Passed and Blocked kinds
	Response string

	// Reason explains an Unavailable outcome for logging; never user-visible
	Reason string

	// EscalationErr records a failed escalation publish on a
	// BlockedSecondary outcome. The block stands regardless
	EscalationErr error
}

// SecondaryResult is the decoded answer of the secondary classifier
type SecondaryResult struct {
	// Detected is true when the classifier flagged the message through its
	// distinguished detection signal
	Detected bool
}
