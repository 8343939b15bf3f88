// Package admin exposes a read-only HTTP surface over worker/processor
// state: SHOW PROCESSLIST's equivalent, Prometheus metrics, and a
// liveness probe. Routing and JSON-response conventions are adapted
// from the teacher's admin package; the endpoints themselves are new,
// since the original has no admin HTTP surface at all (it is a pure
// wire-protocol server).
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ProcessSnapshot is a point-in-time, lock-free copy of one
// connection's state, the admin analogue of one SHOW PROCESSLIST row
// (spec §5 "External reads ... iterate under the lock and return
// copies of processor-state snapshots").
type ProcessSnapshot struct {
	ID       int64     `json:"id"`
	User     string    `json:"user"`
	Host     string    `json:"host"`
	Database string    `json:"database"`
	State    string    `json:"state"`
	Since    time.Time `json:"since"`
}

// Snapshotter is implemented by the server to hand the admin surface a
// consistent, already-copied view of live connections without letting
// HTTP handlers reach into worker-owned state directly.
type Snapshotter interface {
	Snapshot() []ProcessSnapshot
}

type Handlers struct {
	snap    Snapshotter
	metrics http.Handler // nil if telemetry disabled
}

func NewHandlers(snap Snapshotter, metricsHandler http.Handler) *Handlers {
	return &Handlers{snap: snap, metrics: metricsHandler}
}

func (h *Handlers) handleProcesslist(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, h.snap.Snapshot())
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		http.Error(w, "metrics disabled", http.StatusNotFound)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

func writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		log.Error().Err(err).Msg("failed to encode admin JSON response")
	}
}
