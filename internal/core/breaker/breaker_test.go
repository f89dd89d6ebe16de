package breaker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gatekeep/internal/core/breaker"
)

var errBoom = errors.New("boom")

// fakeClock advances only when told to
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func failing(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func counting(err error, n *int) func(context.Context) error {
	return func(context.Context) error {
		*n++
		return err
	}
}

func TestDo_OpensAfterThresholdFailures(t *testing.T) {
	ctx := context.Background()
	b := breaker.New("dep", 3, 30*time.Second)

	for i := 0; i < 3; i++ {
		if err := b.Do(ctx, failing(errBoom)); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if b.State() != breaker.StateOpen {
		t.Fatalf("state = %v, want open after 3 consecutive failures", b.State())
	}

	// rejected without invoking the wrapped call
	calls := 0
	err := b.Do(ctx, counting(nil, &calls))
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if calls != 0 {
		t.Fatalf("wrapped call invoked %d times while open, want 0", calls)
	}
}

func TestDo_SuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	b := breaker.New("dep", 3, 30*time.Second)

	_ = b.Do(ctx, failing(errBoom))
	_ = b.Do(ctx, failing(errBoom))
	if err := b.Do(ctx, failing(nil)); err != nil {
		t.Fatalf("successful call returned %v", err)
	}

	// two more failures must not reach the threshold of three
	_ = b.Do(ctx, failing(errBoom))
	_ = b.Do(ctx, failing(errBoom))
	if b.State() != breaker.StateClosed {
		t.Fatalf("state = %v, want closed after counter reset", b.State())
	}
}

func TestDo_HalfOpenProbeAfterCooldown(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := breaker.New("dep", 1, 30*time.Second, breaker.WithClock(clock.now))

	_ = b.Do(ctx, failing(errBoom))
	if b.State() != breaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	// not yet: cooldown has not elapsed
	clock.advance(29 * time.Second)
	if err := b.Do(ctx, failing(nil)); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("before cooldown: err = %v, want ErrOpen", err)
	}

	// past the cooldown a single probe is admitted, success closes
	clock.advance(2 * time.Second)
	calls := 0
	if err := b.Do(ctx, counting(nil, &calls)); err != nil {
		t.Fatalf("probe returned %v", err)
	}
	if calls != 1 {
		t.Fatalf("probe invoked %d times, want 1", calls)
	}
	if b.State() != breaker.StateClosed {
		t.Fatalf("state = %v, want closed after successful probe", b.State())
	}
	if snap := b.Snapshot(); snap.Failures != 0 {
		t.Fatalf("failures = %d, want 0 after close", snap.Failures)
	}
}

func TestDo_FailedProbeReopens(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := breaker.New("dep", 1, 30*time.Second, breaker.WithClock(clock.now))

	_ = b.Do(ctx, failing(errBoom))
	clock.advance(31 * time.Second)

	if err := b.Do(ctx, failing(errBoom)); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v, want errBoom", err)
	}
	if b.State() != breaker.StateOpen {
		t.Fatalf("state = %v, want reopened after failed probe", b.State())
	}

	// the failed probe refreshed the failure timestamp, so the very next
	// call is rejected again
	if err := b.Do(ctx, failing(nil)); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen right after reopen", err)
	}
}

func TestDo_ConcurrentCallsAdmitSingleProbe(t *testing.T) {
	const callers = 16

	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := breaker.New("dep", 1, 30*time.Second, breaker.WithClock(clock.now))

	_ = b.Do(ctx, failing(errBoom))
	clock.advance(31 * time.Second)

	var invoked atomic.Int32
	release := make(chan struct{})
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		go func() {
			results <- b.Do(ctx, func(context.Context) error {
				invoked.Add(1)
				<-release // hold the probe in flight while the others attempt
				return nil
			})
		}()
	}

	// all other callers must bounce off ErrOpen while the probe is in flight
	for i := 0; i < callers-1; i++ {
		if err := <-results; !errors.Is(err, breaker.ErrOpen) {
			t.Fatalf("concurrent caller %d: err = %v, want ErrOpen", i, err)
		}
	}

	close(release)
	if err := <-results; err != nil {
		t.Fatalf("probe caller returned %v", err)
	}

	if got := invoked.Load(); got != 1 {
		t.Fatalf("wrapped call invoked %d times, want exactly one trial call", got)
	}
	if b.State() != breaker.StateClosed {
		t.Fatalf("state = %v, want closed after the successful probe", b.State())
	}
}

func TestDo_FailureClassifierOverride(t *testing.T) {
	ctx := context.Background()
	sentinel := errors.New("domain outcome, not a fault")
	b := breaker.New("dep", 1, 30*time.Second,
		breaker.WithFailureClassifier(func(err error) bool {
			return err != nil && !errors.Is(err, sentinel)
		}))

	for i := 0; i < 5; i++ {
		if err := b.Do(ctx, failing(sentinel)); !errors.Is(err, sentinel) {
			t.Fatalf("err = %v, want sentinel passed through", err)
		}
	}
	if b.State() != breaker.StateClosed {
		t.Fatalf("state = %v, classified non-failures must not trip the breaker", b.State())
	}
}
