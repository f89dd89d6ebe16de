package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gatekeep/internal/core/breaker"
	"gatekeep/internal/core/scorecache"
	"gatekeep/internal/escalate"
	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/services/screen/domain"
	"gatekeep/internal/services/screen/service"
)

// fakeScorer returns a fixed probability and counts invocations
type fakeScorer struct {
	prob  float64
	err   error
	calls int
}

func (f *fakeScorer) Score(context.Context, string) (float64, error) {
	f.calls++
	return f.prob, f.err
}
func (f *fakeScorer) Ready() bool { return f.err == nil }

type fakeSecondary struct {
	detected bool
	err      error
	calls    int
}

func (f *fakeSecondary) Check(context.Context, string) (domain.SecondaryResult, error) {
	f.calls++
	return domain.SecondaryResult{Detected: f.detected}, f.err
}

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakePublisher struct {
	err    error
	events []escalate.Event
}

func (f *fakePublisher) Publish(_ context.Context, ev escalate.Event) (string, error) {
	f.events = append(f.events, ev)
	return "msg-1", f.err
}

// fixture bundles the fakes behind a ready-to-run service
type fixture struct {
	scorer    *fakeScorer
	secondary *fakeSecondary
	generator *fakeGenerator
	publisher *fakePublisher
	cache     *scorecache.Cache
	svc       *service.Svc
}

func newFixture(cfg service.Config) *fixture {
	f := &fixture{
		scorer:    &fakeScorer{prob: 0.1},
		secondary: &fakeSecondary{},
		generator: &fakeGenerator{reply: "generated reply"},
		publisher: &fakePublisher{},
		cache:     scorecache.New(10, 5),
	}
	f.svc = service.New(cfg, service.Deps{
		Scorer:           f.scorer,
		Cache:            f.cache,
		Secondary:        f.secondary,
		Generator:        f.generator,
		Publisher:        f.publisher,
		SecondaryBreaker: breaker.New("secondary", 3, 30*time.Second),
		GeneratorBreaker: breaker.New("generator", 3, 30*time.Second),
	})
	return f
}

func TestHandle_PassedCarriesGeneratorReply(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.01

	out, err := f.svc.Handle(context.Background(), "how is the weather today")
	if err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if out.Kind != domain.KindPassed {
		t.Fatalf("kind = %v, want passed", out.Kind)
	}
	if out.Response != "generated reply" {
		t.Fatalf("response = %q, want the generator body verbatim", out.Response)
	}
	if f.secondary.calls != 1 || f.generator.calls != 1 {
		t.Fatalf("secondary=%d generator=%d calls, want 1/1", f.secondary.calls, f.generator.calls)
	}
}

func TestHandle_PrimaryBlockSkipsDownstream(t *testing.T) {
	f := newFixture(service.Config{Threshold: 0.9})
	f.scorer.prob = 0.95

	out, err := f.svc.Handle(context.Background(), "some blocked message")
	if err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if out.Kind != domain.KindBlockedPrimary {
		t.Fatalf("kind = %v, want blocked_primary", out.Kind)
	}
	if out.Response != service.BlockText {
		t.Fatalf("response = %q, want block text without marker", out.Response)
	}
	if f.secondary.calls != 0 {
		t.Fatalf("secondary called %d times on a primary block, want 0", f.secondary.calls)
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator called %d times on a primary block, want 0", f.generator.calls)
	}
}

func TestHandle_ThresholdIsInclusive(t *testing.T) {
	f := newFixture(service.Config{Threshold: 0.9})
	f.scorer.prob = 0.9

	out, _ := f.svc.Handle(context.Background(), "right on the line")
	if out.Kind != domain.KindBlockedPrimary {
		t.Fatalf("kind = %v, a score equal to the threshold must block", out.Kind)
	}
}

func TestHandle_SecondaryDetectionBlocksAndEscalates(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.5
	f.secondary.detected = true

	out, err := f.svc.Handle(context.Background(), "a sneaky message")
	if err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if out.Kind != domain.KindBlockedSecondary {
		t.Fatalf("kind = %v, want blocked_secondary", out.Kind)
	}
	if out.Response != service.BlockText+service.BlockMarker {
		t.Fatalf("response = %q, want block text with marker", out.Response)
	}
	if out.EscalationErr != nil {
		t.Fatalf("EscalationErr = %v, want nil on successful publish", out.EscalationErr)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want exactly 1", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.MessageText != "a sneaky message" || ev.ID == "" || ev.DetectedAt.IsZero() {
		t.Fatalf("event not fully populated: %+v", ev)
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator called %d times on a secondary block, want 0", f.generator.calls)
	}
}

func TestHandle_FailedEscalationDoesNotDowngradeBlock(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.5
	f.secondary.detected = true
	f.publisher.err = errors.New("topic gone")

	out, err := f.svc.Handle(context.Background(), "a sneaky message")
	if err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if out.Kind != domain.KindBlockedSecondary {
		t.Fatalf("kind = %v, the block must stand when publish fails", out.Kind)
	}
	if out.EscalationErr == nil {
		t.Fatalf("EscalationErr missing on failed publish")
	}
	if !perr.IsCode(out.EscalationErr, perr.ErrorCodeEscalation) {
		t.Fatalf("EscalationErr code = %v, want escalation", perr.CodeOf(out.EscalationErr))
	}
}

func TestHandle_CacheShortCircuitsRepeatScore(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.2

	ctx := context.Background()
	if _, err := f.svc.Handle(ctx, "Repeat after me"); err != nil {
		t.Fatalf("first Handle returned %v", err)
	}
	// fold-equivalent variant must hit the cache
	if _, err := f.svc.Handle(ctx, "  repeat AFTER me "); err != nil {
		t.Fatalf("second Handle returned %v", err)
	}

	if f.scorer.calls != 1 {
		t.Fatalf("scorer invoked %d times, want 1 (second request served from cache)", f.scorer.calls)
	}
	if st := f.cache.Snapshot(); st.Hits != 1 {
		t.Fatalf("cache hits = %d, want 1", st.Hits)
	}
}

func TestHandle_ScorerFaultBecomesUnavailable(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.err = errors.New("model not loaded")

	out, err := f.svc.Handle(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("dependency faults must not surface as handler errors, got %v", err)
	}
	if out.Kind != domain.KindUnavailable {
		t.Fatalf("kind = %v, want unavailable", out.Kind)
	}
	if !strings.Contains(out.Reason, "scorer") {
		t.Fatalf("reason = %q, want the failed dependency named", out.Reason)
	}
	if f.secondary.calls != 0 {
		t.Fatalf("secondary called after a scorer fault")
	}
}

func TestHandle_OpenSecondaryBreakerDegrades(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.5
	f.secondary.err = errors.New("connection refused")

	ctx := context.Background()
	// three failing calls trip the secondary breaker
	for i := 0; i < 3; i++ {
		out, _ := f.svc.Handle(ctx, "msg")
		if out.Kind != domain.KindUnavailable {
			t.Fatalf("call %d: kind = %v, want unavailable", i, out.Kind)
		}
	}

	// fourth request is rejected by the breaker without reaching the dependency
	out, _ := f.svc.Handle(ctx, "msg")
	if out.Kind != domain.KindUnavailable {
		t.Fatalf("kind = %v, want unavailable while breaker is open", out.Kind)
	}
	if f.secondary.calls != 3 {
		t.Fatalf("secondary called %d times, want 3 (open breaker short-circuits)", f.secondary.calls)
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator must never run when the secondary stage failed")
	}
}

func TestHandle_GeneratorFaultDegrades(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.1
	f.generator.err = errors.New("bad gateway")

	out, err := f.svc.Handle(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if out.Kind != domain.KindUnavailable {
		t.Fatalf("kind = %v, want unavailable", out.Kind)
	}
	if !strings.Contains(out.Reason, "generator") {
		t.Fatalf("reason = %q, want generator named", out.Reason)
	}
}

func TestHandle_ValidationErrors(t *testing.T) {
	f := newFixture(service.Config{MaxMessageLen: 10})

	_, err := f.svc.Handle(context.Background(), "   ")
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("blank message: code = %v, want validation", perr.CodeOf(err))
	}

	_, err = f.svc.Handle(context.Background(), strings.Repeat("x", 11))
	if !perr.IsCode(err, perr.ErrorCodeTooLarge) {
		t.Fatalf("oversize message: code = %v, want too_large", perr.CodeOf(err))
	}

	if f.scorer.calls != 0 {
		t.Fatalf("scorer invoked %d times on invalid input, want 0", f.scorer.calls)
	}
}

func TestHandle_LengthCapCountsRunesNotBytes(t *testing.T) {
	f := newFixture(service.Config{MaxMessageLen: 10})
	f.scorer.prob = 0.1

	// ten runes, thirty bytes; must pass the cap
	out, err := f.svc.Handle(context.Background(), strings.Repeat("世", 10))
	if err != nil {
		t.Fatalf("ten-rune message rejected: %v", err)
	}
	if out.Kind != domain.KindPassed {
		t.Fatalf("kind = %v, want passed", out.Kind)
	}

	// eleven runes is over the cap regardless of encoding
	_, err = f.svc.Handle(context.Background(), strings.Repeat("世", 11))
	if !perr.IsCode(err, perr.ErrorCodeTooLarge) {
		t.Fatalf("eleven-rune message: code = %v, want too_large", perr.CodeOf(err))
	}
}

func TestHandle_NormalizedToNothingStillScreened(t *testing.T) {
	f := newFixture(service.Config{})
	f.scorer.prob = 0.99 // must not matter, scorer is skipped

	// single-rune tokens all drop out of normalization
	out, err := f.svc.Handle(context.Background(), "a b c 1")
	if err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if f.scorer.calls != 0 {
		t.Fatalf("scorer invoked on an empty normalized text")
	}
	// a zero score continues down the cascade
	if out.Kind != domain.KindPassed {
		t.Fatalf("kind = %v, want passed through the remaining stages", out.Kind)
	}
	if f.secondary.calls != 1 {
		t.Fatalf("secondary stage skipped for a zero-score message")
	}
}
