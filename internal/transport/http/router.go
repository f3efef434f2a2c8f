// Package httptransport assembles the HTTP surface. Domain handlers register
// their own routes and middleware; this package only provides the shared
// router, health check, and metrics endpoint.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ruminster/internal/transport/http/shared"
)

// Registerer is implemented by every domain handler package.
type Registerer interface {
	Register(r chi.Router)
}

// NewRouter builds the root router: health and metrics endpoints plus every
// registered domain handler.
func NewRouter(handlers ...Registerer) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
