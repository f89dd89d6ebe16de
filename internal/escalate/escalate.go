// Package escalate publishes flagged messages to the asynchronous secondary
// handling channel.
//
// Publishing is attempted exactly once per detection; at-least-once delivery
// is the event bus's concern and deduplication belongs to the downstream
// consumer, not the publisher
package escalate

import (
	"context"
	"time"
)

// Event is the write-once escalation payload. It is created, handed to the
// publisher, and discarded once the publish attempt completes
type Event struct {
	ID          string    `json:"id"`
	MessageText string    `json:"message"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Publisher is the escalation channel port. Publish returns the channel's
// opaque message id, used only for logging
type Publisher interface {
	Publish(ctx context.Context, ev Event) (string, error)
}
