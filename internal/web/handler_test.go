package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicad-gtm/kicad-gtm/internal/config"
	"github.com/kicad-gtm/kicad-gtm/internal/engine"
	"github.com/kicad-gtm/kicad-gtm/internal/metrics"
	"github.com/kicad-gtm/kicad-gtm/internal/models"
)

type staticStatus engine.Status

func (s staticStatus) Snapshot() engine.Status { return engine.Status(s) }

type fakeErrors struct {
	logs  []*models.ErrorLog
	err   error
	limit int
}

func (f *fakeErrors) RecentErrors(limit int) ([]*models.ErrorLog, error) {
	f.limit = limit
	return f.logs, f.err
}

func newTestMux(status engine.Status, errs *fakeErrors) *http.ServeMux {
	m := metrics.New()
	m.RecordHeartbeat(metrics.SourcePoll)
	h := NewHandler(config.Default(), staticStatus(status), errs, m.Handler(), zerolog.Nop())
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleStatus(t *testing.T) {
	at := time.Now().Add(-3 * time.Minute)
	mux := newTestMux(engine.Status{
		Loaded:          true,
		ProjectsFolder:  "/projects",
		CurrentFilename: "amp.kicad_pcb",
		LastRecordedAt:  &at,
		IndexedFiles:    4,
	}, &fakeErrors{})

	rec := get(t, mux, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "amp.kicad_pcb", body["current_filename"])
	assert.Equal(t, "3m ago", body["last_activity_ago"])
	assert.Equal(t, float64(4), body["indexed_files"])
}

func TestHandleStatusLoading(t *testing.T) {
	mux := newTestMux(engine.Status{}, &fakeErrors{})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(get(t, mux, "/api/status").Body.Bytes(), &body))
	assert.Equal(t, "loading...", body["status"])
	assert.Equal(t, "N/A", body["last_activity"])
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	mux := newTestMux(engine.Status{}, &fakeErrors{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleErrors(t *testing.T) {
	errs := &fakeErrors{logs: []*models.ErrorLog{{ID: 1, ErrorMsg: "zip: not a valid zip file"}}}
	mux := newTestMux(engine.Status{}, errs)

	rec := get(t, mux, "/api/errors?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, errs.limit)

	var logs []models.ErrorLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "zip: not a valid zip file", logs[0].ErrorMsg)
}

func TestHandleErrorsDefaults(t *testing.T) {
	errs := &fakeErrors{}
	mux := newTestMux(engine.Status{}, errs)

	rec := get(t, mux, "/api/errors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultErrorLimit, errs.limit)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleErrorsBadLimit(t *testing.T) {
	mux := newTestMux(engine.Status{}, &fakeErrors{})
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/errors?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/errors?limit=abc").Code)
}

func TestHandleErrorsStoreFailure(t *testing.T) {
	mux := newTestMux(engine.Status{}, &fakeErrors{err: errors.New("database is locked")})
	assert.Equal(t, http.StatusInternalServerError, get(t, mux, "/api/errors").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	mux := newTestMux(engine.Status{}, &fakeErrors{})

	rec := get(t, mux, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = get(t, mux, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kicad_gtm_heartbeats_total{source="poll"} 1`)
}

func TestHandleIndex(t *testing.T) {
	mux := newTestMux(engine.Status{Loaded: true}, &fakeErrors{})

	rec := get(t, mux, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "need settings!")

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/nope").Code)
}

func TestServerAddress(t *testing.T) {
	cfg := config.Default()
	h := NewHandler(cfg, staticStatus{}, &fakeErrors{}, nil, zerolog.Nop())

	assert.Equal(t, "localhost:9999", NewServer(cfg, h, 9999, zerolog.Nop()).GetAddress())
}
