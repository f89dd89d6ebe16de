// Package health aggregates dependency and component probes for the
// liveness and readiness endpoints
package health

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"strings"
	"time"

	"gatekeep/internal/platform/config"
	"gatekeep/internal/platform/logger"
)

// Probe checks one component; nil means healthy
type Probe func(ctx context.Context) error

type check struct {
	name  string
	probe Probe
}

// Checker runs a fixed set of named probes and renders {component: OK|FAIL}
type Checker struct {
	service string
	checks  []check
	timeout time.Duration
	log     *logger.Logger
}

// New constructs a Checker; probe runs are bounded by timeout (default 5s)
func New(service string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		service: service,
		timeout: timeout,
		log:     logger.Named("health"),
	}
}

// Register adds a named probe. Order is preserved in the response
func (c *Checker) Register(name string, probe Probe) {
	c.checks = append(c.checks, check{name: name, probe: probe})
}

// report is the wire shape of a probe run
type report struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
	Errors  []string          `json:"errors,omitempty"`
}

// Handler runs all probes and answers 200 only when every one passes
func (c *Checker) Handler() stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()

		rep := report{
			Status:  "ready",
			Service: c.service,
			Checks:  make(map[string]string, len(c.checks)),
		}
		for _, ch := range c.checks {
			if err := ch.probe(ctx); err != nil {
				rep.Checks[ch.name] = "FAIL"
				rep.Errors = append(rep.Errors, ch.name+": "+err.Error())
				c.log.Warn().Str("check", ch.name).Err(err).Msg("probe failed")
				continue
			}
			rep.Checks[ch.name] = "OK"
		}

		status := stdhttp.StatusOK
		if len(rep.Errors) > 0 {
			rep.Status = "not_ready"
			status = stdhttp.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(rep)
	}
}

// ConfigProbe reports the first required config key that is missing or empty
func ConfigProbe(cfg config.Conf, keys ...string) Probe {
	return func(context.Context) error {
		for _, k := range keys {
			if !cfg.Has(k) {
				return &missingKeyError{key: k}
			}
		}
		return nil
	}
}

type missingKeyError struct{ key string }

func (e *missingKeyError) Error() string {
	return "required config " + e.key + " is not set"
}

// HTTPProbe probes a dependency's health endpoint with a bounded GET
func HTTPProbe(baseURL string) Probe {
	client := &stdhttp.Client{}
	u := strings.TrimRight(baseURL, "/") + "/healthz"
	return func(ctx context.Context) error {
		req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, u, nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = res.Body.Close()
		if res.StatusCode != stdhttp.StatusOK {
			return &statusError{code: res.StatusCode}
		}
		return nil
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unhealthy: status " + stdhttp.StatusText(e.code)
}
