// gatekeep-stubs runs local stand-ins for the gateway's two downstream
// services: a secondary classifier that answers 401 when a trigger substring
// appears in the message, and a generation service that echoes the message.
// Development and e2e tooling only
package main

import (
	"context"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gatekeep/internal/platform/config"
	"gatekeep/internal/platform/logger"
	phttp "gatekeep/internal/platform/net/http"
	"gatekeep/internal/platform/net/middleware"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	root := config.New()
	cfg := root.Prefix("STUB_")
	l := logger.Get()

	trigger := strings.ToLower(cfg.MayString("TRIGGER", "jailbreak"))

	// distinct listen defaults so both stubs come up without any env set
	for key, def := range map[string]string{"SECONDARY_ADDR": ":8081", "GENERATOR_ADDR": ":8083"} {
		if !cfg.Has(key) {
			_ = os.Setenv("STUB_"+key, def)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secondary := phttp.NewServer(cfg.Prefix("SECONDARY_"))
	mountStub(secondary.Router(), "secondary", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		msg := strings.ToLower(r.PostFormValue("message"))
		if strings.Contains(msg, trigger) {
			// detection signal by protocol convention
			phttp.Error(w, stdhttp.StatusUnauthorized, "flagged")
			return
		}
		phttp.Text(w, stdhttp.StatusOK, "ok")
	})

	generator := phttp.NewServer(cfg.Prefix("GENERATOR_"))
	mountStub(generator.Router(), "generator", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		msg := r.PostFormValue("message")
		phttp.Text(w, stdhttp.StatusOK, "You said: "+msg+" [reply "+uuid.NewString()[:8]+"]")
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return secondary.Run(ctx) })
	g.Go(func() error { return generator.Run(ctx) })

	l.Info().
		Str("secondary", secondary.Addr()).
		Str("generator", generator.Addr()).
		Str("trigger", trigger).
		Msg("stubs listening")

	if err := g.Wait(); err != nil {
		l.Panic().Err(err).Msg("stubs stopped")
	}
}

// mountStub wires the shared middleware, the POST endpoint, and a health probe
func mountStub(r phttp.Router, name string, handle phttp.Handler) {
	r.Use(middleware.Defaults()...)
	r.Post("/", handle)
	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		phttp.Text(w, stdhttp.StatusOK, name+" ok")
	})
}
