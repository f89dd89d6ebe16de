package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"gatekeep/internal/core/scorecache"
	"gatekeep/internal/escalate"
	"gatekeep/internal/metrics"
	"gatekeep/internal/platform/config"
	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"
	phttp "gatekeep/internal/platform/net/http"
	"gatekeep/internal/platform/net/middleware"
	"gatekeep/internal/scorer"
	"gatekeep/internal/services/health"
	screenmod "gatekeep/internal/services/screen/module"

	"golang.org/x/sync/errgroup"
)

func main() {
	// service-scoped config (GATE_*)
	root := config.New()
	gate := root.Prefix("GATE_")

	// bring up logging early
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// model bundle; a failed load leaves the gateway serving degraded
	// responses, readiness reports the failure
	sc := scorer.NewONNX(gate.MayString("MODEL_BUNDLE", "./model"))
	if err := sc.Load(ctx); err != nil {
		l.Error().Err(err).Msg("model load failed; serving degraded until reload")
	}
	defer sc.Close()

	// escalation channel
	pub, err := escalate.NewSNS(ctx, gate.MustString("ESCALATION_TOPIC_ARN"))
	if err != nil {
		l.Panic().Err(err).Msg("escalation publisher init failed")
	}

	// metrics registry; the occupancy gauge binds to the cache once the
	// module has built it
	var cacheRef *scorecache.Cache
	met := metrics.New(func() float64 {
		if cacheRef == nil {
			return 0
		}
		return float64(cacheRef.Len())
	})

	mod, err := screenmod.New(screenmod.FromConfig(gate), screenmod.Deps{
		Scorer:    sc,
		Publisher: pub,
		Metrics:   met,
	})
	if err != nil {
		l.Panic().Err(err).Msg("screen module init failed")
	}
	cacheRef = mod.Cache()

	// health probes
	secondaryURL := gate.MustString("SECONDARY_URL")
	generatorURL := gate.MustString("GENERATOR_URL")

	live := health.New("gatekeep", 5*time.Second)
	live.Register("model", modelProbe(sc))

	ready := health.New("gatekeep", 5*time.Second)
	ready.Register("config", health.ConfigProbe(gate,
		"ESCALATION_TOPIC_ARN", "SECONDARY_URL", "GENERATOR_URL"))
	ready.Register("model", modelProbe(sc))
	ready.Register("cache", func(context.Context) error {
		if cacheRef == nil {
			return perr.Unavailablef("score cache not wired")
		}
		return nil
	})
	ready.Register("secondary", health.HTTPProbe(secondaryURL))
	ready.Register("generator", health.HTTPProbe(generatorURL))

	// http server
	srv := phttp.NewServer(gate)
	r := srv.Router()
	r.Use(middleware.Defaults()...)
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{Slow: time.Second}))
	r.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: []string{"*"}}))

	mod.MountRoutes(r, met)
	r.Get("/healthz", live.Handler())
	r.Get("/readyz", ready.Handler())
	r.Handle("/metrics", met.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if err := g.Wait(); err != nil {
		l.Panic().Err(err).Msg("gateway stopped")
	}
	l.Info().Msg("gateway shut down")
}

// modelProbe verifies the scorer is loaded and can actually produce a score
func modelProbe(s scorer.Scorer) health.Probe {
	return func(ctx context.Context) error {
		if !s.Ready() {
			return scorer.ErrUnavailable
		}
		_, err := s.Score(ctx, "test")
		return err
	}
}
