// Package breaker implements a per-dependency circuit breaker.
//
// State machine: Closed -> Open after threshold consecutive failures;
// Open -> HalfOpen lazily once the cooldown has elapsed, checked at call
// time; HalfOpen permits exactly one trial call, success closes the breaker
// and resets the failure count, failure reopens it and refreshes the
// failure timestamp. Each downstream dependency owns an independent instance
package breaker

import (
	"context"
	"sync"
	"time"

	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"
)

// State is the breaker state tag
type State uint8

const (
	// StateClosed passes calls through and counts consecutive failures
	StateClosed State = iota
	// StateOpen rejects calls without invoking the wrapped function
	StateOpen
	// StateHalfOpen permits a single trial call
	StateHalfOpen
)

// String renders the state for logs and health payloads
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected without being attempted
var ErrOpen = perr.New(perr.ErrorCodeUnavailable, "circuit breaker open")

// Snapshot is a point-in-time view for health reporting
type Snapshot struct {
	Name        string
	State       State
	Failures    int
	LastFailure time.Time
}

// Breaker gates calls to one downstream dependency
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	// isFailure classifies an error from the wrapped call. The default treats
	// any non-nil error as a failure; callers override it so application-level
	// outcomes carried on errors are not counted against the dependency
	isFailure func(error) bool

	now func() time.Time // seam for tests

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool // a HalfOpen trial call is in flight
}

// Option mutates a Breaker at construction time
type Option func(*Breaker)

// WithFailureClassifier overrides the default err != nil failure rule
func WithFailureClassifier(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// WithClock overrides the time source (tests only)
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New constructs a breaker for one named dependency
func New(name string, threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		isFailure: func(err error) bool { return err != nil },
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Do runs fn through the breaker. When the breaker is Open and the cooldown
// has not elapsed, fn is not invoked and ErrOpen is returned. The error from
// fn is always returned to the caller untouched
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

// admit decides whether a call may proceed, applying the lazy Open->HalfOpen
// transition and the single-probe HalfOpen rule
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) > b.cooldown {
			b.state = StateHalfOpen
			logger.Named("breaker").Info().Str("name", b.name).Msg("cooldown elapsed, half open")
		} else {
			return ErrOpen
		}
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
	}

	if b.state == StateHalfOpen {
		b.probing = true
	}
	return nil
}

// record applies the outcome of an attempted call to the state machine
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == StateHalfOpen
	if wasProbe {
		b.probing = false
	}

	if !b.isFailure(err) {
		b.failures = 0
		if b.state != StateClosed {
			logger.Named("breaker").Info().Str("name", b.name).Msg("closed")
		}
		b.state = StateClosed
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if wasProbe || b.failures >= b.threshold {
		if b.state != StateOpen {
			logger.Named("breaker").Warn().
				Str("name", b.name).
				Int("failures", b.failures).
				Msg("opened")
		}
		b.state = StateOpen
	}
}

// Name returns the dependency name this breaker guards
func (b *Breaker) Name() string { return b.name }

// State returns the current state tag
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a point-in-time view for health reporting
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:        b.name,
		State:       b.state,
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
}
