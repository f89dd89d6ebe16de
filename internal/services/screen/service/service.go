// Package service contains the screening pipeline workflow
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"gatekeep/internal/core/breaker"
	"gatekeep/internal/core/scorecache"
	"gatekeep/internal/core/textnorm"
	"gatekeep/internal/escalate"
	"gatekeep/internal/metrics"
	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"
	"gatekeep/internal/services/screen/domain"

	"github.com/google/uuid"
)

// BlockText is the user-visible block message. The secondary path appends
// BlockMarker so the two stages stay distinguishable downstream
const (
	BlockText   = "I don't understand your message, can you say it another way?"
	BlockMarker = " (secondary)"
)

// Config tunes the pipeline
type Config struct {
	// Threshold is the primary block cutoff on the scorer probability
	Threshold float64
	// MaxMessageLen rejects longer messages before any scoring
	MaxMessageLen int
	// LogRequests enables per-request scoring logs
	LogRequests bool
}

// Svc sequences scorer, cache, secondary classifier, escalation, and the
// generation service into the end-to-end decision pipeline
type Svc struct {
	cfg Config

	scorer    domain.ScorerPort
	cache     *scorecache.Cache
	secondary domain.SecondaryPort
	generator domain.GeneratorPort
	publisher escalate.Publisher

	// one breaker per downstream dependency; never shared
	secBreaker *breaker.Breaker
	genBreaker *breaker.Breaker

	met *metrics.Metrics
	log *logger.Logger
}

// Deps carries the injected collaborators
type Deps struct {
	Scorer    domain.ScorerPort
	Cache     *scorecache.Cache
	Secondary domain.SecondaryPort
	Generator domain.GeneratorPort
	Publisher escalate.Publisher

	SecondaryBreaker *breaker.Breaker
	GeneratorBreaker *breaker.Breaker

	Metrics *metrics.Metrics
}

// New constructs the screening service
func New(cfg Config, d Deps) *Svc {
	if d.Scorer == nil || d.Cache == nil || d.Secondary == nil || d.Generator == nil || d.Publisher == nil {
		panic("screen.Service requires scorer, cache, secondary, generator, and publisher")
	}
	if d.SecondaryBreaker == nil || d.GeneratorBreaker == nil {
		panic("screen.Service requires one breaker per dependency")
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.9
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = 10000
	}
	return &Svc{
		cfg:        cfg,
		scorer:     d.Scorer,
		cache:      d.Cache,
		secondary:  d.Secondary,
		generator:  d.Generator,
		publisher:  d.Publisher,
		secBreaker: d.SecondaryBreaker,
		genBreaker: d.GeneratorBreaker,
		met:        d.Metrics,
		log:        logger.Named("screen"),
	}
}

// Handle runs one message through the pipeline. Validation failures return a
// typed error; every dependency failure becomes a safe Unavailable outcome.
// An unscored message is never passed through
func (s *Svc) Handle(ctx context.Context, message string) (domain.Outcome, error) {
	s.count(func(m *metrics.Metrics) { m.RequestsTotal.Inc() })

	if strings.TrimSpace(message) == "" {
		return domain.Outcome{}, perr.Validationf("message cannot be empty")
	}
	if utf8.RuneCountInString(message) > s.cfg.MaxMessageLen {
		return domain.Outcome{}, perr.TooLargef("message too long (max %d characters)", s.cfg.MaxMessageLen)
	}
	message = strings.TrimSpace(message)

	prob, err := s.scoreWithCache(ctx, message)
	if err != nil {
		return s.unavailable("scorer", err), nil
	}

	if prob >= s.cfg.Threshold {
		s.count(func(m *metrics.Metrics) { m.Blocked.WithLabelValues("primary").Inc() })
		if s.cfg.LogRequests {
			logger.C(ctx).Info().Float64("score", prob).Msg("blocked by primary threshold")
		}
		return domain.Outcome{Kind: domain.KindBlockedPrimary, Response: BlockText}, nil
	}

	res, err := s.checkSecondary(ctx, message)
	if err != nil {
		return s.unavailable("secondary", err), nil
	}
	if res.Detected {
		return s.blockSecondary(ctx, message), nil
	}

	text, err := s.generate(ctx, message)
	if err != nil {
		return s.unavailable("generator", err), nil
	}

	s.count(func(m *metrics.Metrics) { m.Passed.Inc() })
	return domain.Outcome{Kind: domain.KindPassed, Response: text}, nil
}

// scoreWithCache consults the fingerprint cache and only invokes the scorer
// on a miss. A scorer fault is surfaced, never defaulted to a probability
func (s *Svc) scoreWithCache(ctx context.Context, message string) (float64, error) {
	fp := textnorm.Fingerprint(message)

	if e, ok := s.cache.Get(fp); ok {
		s.count(func(m *metrics.Metrics) { m.CacheHits.Inc() })
		if s.cfg.LogRequests {
			logger.C(ctx).Info().Str("fingerprint", fp).Int("cache_size", s.cache.Len()).Msg("cache hit")
		}
		return e.Probability, nil
	}
	s.count(func(m *metrics.Metrics) { m.CacheMisses.Inc() })

	normalized := textnorm.DropShortTokens(textnorm.Fold(message))
	if normalized == "" {
		// nothing scoreable survives normalization; the legacy pipeline
		// treats this as a zero score and moves on to the secondary stage
		return 0, nil
	}

	prob, err := s.scorer.Score(ctx, normalized)
	if err != nil {
		return 0, err
	}

	s.cache.Put(fp, scorecache.Entry{
		Fingerprint: fp,
		Probability: prob,
		ComputedAt:  time.Now(),
	})
	if s.cfg.LogRequests {
		logger.C(ctx).Info().Float64("score", prob).Int("length", len(message)).Msg("scored")
	}
	return prob, nil
}

// checkSecondary calls the secondary classifier through its own breaker
func (s *Svc) checkSecondary(ctx context.Context, message string) (domain.SecondaryResult, error) {
	var res domain.SecondaryResult
	err := s.secBreaker.Do(ctx, func(ctx context.Context) error {
		r, err := s.secondary.Check(ctx, message)
		res = r
		return err
	})
	s.gauge("secondary", s.secBreaker)
	return res, err
}

// generate calls the generation service through its own breaker
func (s *Svc) generate(ctx context.Context, message string) (string, error) {
	var text string
	err := s.genBreaker.Do(ctx, func(ctx context.Context) error {
		t, err := s.generator.Generate(ctx, message)
		text = t
		return err
	})
	s.gauge("generator", s.genBreaker)
	return text, err
}

// blockSecondary publishes the escalation event and returns the block.
// A failed publish is recorded as detail; it never downgrades the block and
// never lets the message through
func (s *Svc) blockSecondary(ctx context.Context, message string) domain.Outcome {
	ev := escalate.Event{
		ID:          uuid.NewString(),
		MessageText: message,
		DetectedAt:  time.Now().UTC(),
	}

	out := domain.Outcome{Kind: domain.KindBlockedSecondary, Response: BlockText + BlockMarker}
	if _, err := s.publisher.Publish(ctx, ev); err != nil {
		out.EscalationErr = perr.Wrap(err, perr.ErrorCodeEscalation, "escalation publish failed")
		logger.C(ctx).Error().Err(err).Str("event_id", ev.ID).Msg("escalation publish failed, block stands")
	} else {
		logger.C(ctx).Info().Str("event_id", ev.ID).Msg("secondary classifier detection escalated")
	}

	s.count(func(m *metrics.Metrics) { m.Blocked.WithLabelValues("secondary").Inc() })
	return out
}

// unavailable builds the safe degraded outcome for a failed dependency
func (s *Svc) unavailable(dep string, err error) domain.Outcome {
	s.count(func(m *metrics.Metrics) { m.Unavailable.Inc() })
	s.log.Error().Err(err).Str("dependency", dep).Msg("dependency unavailable")
	return domain.Outcome{Kind: domain.KindUnavailable, Reason: dep + ": " + err.Error()}
}

// count applies fn when metrics are wired (tests may omit them)
func (s *Svc) count(fn func(*metrics.Metrics)) {
	if s.met != nil {
		fn(s.met)
	}
}

// gauge mirrors a breaker's state into the metrics registry
func (s *Svc) gauge(dep string, b *breaker.Breaker) {
	if s.met != nil {
		s.met.BreakerState.WithLabelValues(dep).Set(float64(b.State()))
	}
}
