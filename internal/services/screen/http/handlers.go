// Package http provides the inbound transport for the screen service
package http

import (
	stdhttp "net/http"
	"time"

	"gatekeep/internal/metrics"
	phttp "gatekeep/internal/platform/net/http"
	"gatekeep/internal/services/screen/domain"
	svc "gatekeep/internal/services/screen/service"
)

// Register mounts the screening endpoints on the given router
func Register(r phttp.Router, s *svc.Svc, met *metrics.Metrics) {
	h := &handlers{svc: s, met: met}
	r.Get("/", h.index)
	r.Post("/handle", h.handle)
}

type handlers struct {
	svc *svc.Svc
	met *metrics.Metrics
}

// index is a minimal landing body for humans poking the service
func (h *handlers) index(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	phttp.Text(w, stdhttp.StatusOK, "gatekeep: POST a form field 'message' to /handle\n")
}

// handle screens one message and renders the pipeline outcome
func (h *handlers) handle(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	start := time.Now()
	defer func() {
		if h.met != nil {
			h.met.Duration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := r.ParseForm(); err != nil {
		phttp.Error(w, stdhttp.StatusBadRequest, phttp.GenericMessage(stdhttp.StatusBadRequest))
		return
	}
	message := r.PostFormValue("message")

	out, err := h.svc.Handle(r.Context(), message)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	switch out.Kind {
	case domain.KindPassed, domain.KindBlockedPrimary, domain.KindBlockedSecondary:
		phttp.Text(w, stdhttp.StatusOK, out.Response)
	case domain.KindUnavailable:
		phttp.Error(w, stdhttp.StatusServiceUnavailable, phttp.GenericMessage(stdhttp.StatusServiceUnavailable))
	default:
		phttp.Error(w, stdhttp.StatusInternalServerError, phttp.GenericMessage(stdhttp.StatusInternalServerError))
	}
}
