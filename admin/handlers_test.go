package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct{ rows []ProcessSnapshot }

func (f fakeSnapshotter) Snapshot() []ProcessSnapshot { return f.rows }

func TestHandleProcesslist_ReturnsSnapshot(t *testing.T) {
	h := NewHandlers(fakeSnapshotter{rows: []ProcessSnapshot{
		{ID: 1, User: "bob", Host: "%", Database: "test", State: "SLEEP", Since: time.Now()},
	}}, nil)

	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	req := httptest.NewRequest(http.MethodGet, "/debug/processlist", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "\"bob\"")
}

func TestHandleHealthz_ReturnsOK(t *testing.T) {
	h := NewHandlers(fakeSnapshotter{}, nil)
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestHandleMetrics_404WhenDisabled(t *testing.T) {
	h := NewHandlers(fakeSnapshotter{}, nil)
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
