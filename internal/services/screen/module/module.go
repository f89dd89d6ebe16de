// Package module wires the screen service into the gateway
package module

import (
	"gatekeep/internal/core/breaker"
	"gatekeep/internal/core/httpcall"
	"gatekeep/internal/core/scorecache"
	"gatekeep/internal/escalate"
	"gatekeep/internal/metrics"
	perr "gatekeep/internal/platform/errors"
	phttp "gatekeep/internal/platform/net/http"
	"gatekeep/internal/services/screen/domain"
	screenhttp "gatekeep/internal/services/screen/http"
	"gatekeep/internal/services/screen/service"

	"github.com/go-playground/validator/v10"
)

// Deps are the externally-owned collaborators injected into the module
type Deps struct {
	Scorer    domain.ScorerPort
	Publisher escalate.Publisher
	Metrics   *metrics.Metrics
}

// Module owns the screen service wiring: cache, per-dependency breakers,
// retrying clients, and the pipeline itself
type Module struct {
	svc   *service.Svc
	cache *scorecache.Cache

	secBreaker *breaker.Breaker
	genBreaker *breaker.Breaker
}

// New validates the options and assembles the pipeline
func New(opts Options, deps Deps) (*Module, error) {
	if deps.Scorer == nil || deps.Publisher == nil {
		panic("screen module: Deps missing Scorer or Publisher")
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "invalid screen options")
	}

	var tokens httpcall.TokenSource
	if opts.StaticToken != "" {
		tokens = httpcall.NewStatic(opts.StaticToken)
	} else {
		tokens = httpcall.NewMetadata(opts.MetadataBase)
	}
	client := httpcall.New(httpcall.Config{
		Timeout:    opts.CallTimeout,
		MaxRetries: opts.MaxRetries,
		BaseDelay:  opts.BaseDelay,
		MaxDelay:   opts.MaxDelay,
		Tokens:     tokens,
	})

	cache := scorecache.New(opts.CacheCap, opts.CacheEvict)
	secBreaker := breaker.New("secondary", opts.BreakerThreshold, opts.BreakerCooldown)
	genBreaker := breaker.New("generator", opts.BreakerThreshold, opts.BreakerCooldown)

	svc := service.New(
		service.Config{
			Threshold:     opts.Threshold,
			MaxMessageLen: opts.MaxMessageLen,
			LogRequests:   opts.LogRequests,
		},
		service.Deps{
			Scorer:           deps.Scorer,
			Cache:            cache,
			Secondary:        service.NewSecondaryClient(client, opts.SecondaryURL),
			Generator:        service.NewGeneratorClient(client, opts.GeneratorURL),
			Publisher:        deps.Publisher,
			SecondaryBreaker: secBreaker,
			GeneratorBreaker: genBreaker,
			Metrics:          deps.Metrics,
		},
	)

	return &Module{
		svc:        svc,
		cache:      cache,
		secBreaker: secBreaker,
		genBreaker: genBreaker,
	}, nil
}

// Service exposes the pipeline (health checks and tests)
func (m *Module) Service() *service.Svc { return m.svc }

// Cache exposes the score cache (metrics and health)
func (m *Module) Cache() *scorecache.Cache { return m.cache }

// Breakers returns the per-dependency breaker instances
func (m *Module) Breakers() []*breaker.Breaker {
	return []*breaker.Breaker{m.secBreaker, m.genBreaker}
}

// MountRoutes mounts the screen endpoints on the given router
func (m *Module) MountRoutes(r phttp.Router, met *metrics.Metrics) {
	screenhttp.Register(r, m.svc, met)
}
