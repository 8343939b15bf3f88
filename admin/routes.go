package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the admin surface's three endpoints on mux:
// /debug/processlist (SHOW PROCESSLIST's HTTP analogue, grouped under
// /debug/ the way the teacher groups its diagnostic endpoints), plus
// top-level /metrics and /healthz for operator tooling that expects
// those exact well-known paths.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	r := chi.NewRouter()
	r.Get("/processlist", h.handleProcesslist)

	mux.Handle("/debug", http.RedirectHandler("/debug/", http.StatusMovedPermanently))
	mux.Handle("/debug/", http.StripPrefix("/debug", r))
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/metrics", h.handleMetrics)
}
