package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/nudge-engine/internal/cache"
	"github.com/gatherly/nudge-engine/internal/config"
	"github.com/gatherly/nudge-engine/internal/nudge"
)

type fakeEngine struct {
	stats    nudge.SignalStats
	eventErr error
	result   *nudge.RunResult
	lastID   string
}

func (f *fakeEngine) ProcessApprovedEvent(_ context.Context, eventID string) (nudge.SignalStats, error) {
	f.lastID = eventID
	return f.stats, f.eventErr
}

func (f *fakeEngine) ProcessPeriodicNudges(_ context.Context) *nudge.RunResult {
	return f.result
}

func newTestRouter(engine Engine) (*chi.Mux, *cache.Cache) {
	c := cache.New(true)
	h := New(nil, engine, c, &config.Config{}, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/events/{eventID}/approved", h.EventApproved)
	r.Post("/api/v1/nudges/run", h.RunNudges)
	r.Get("/api/v1/nudges/status", h.NudgeStatus)
	return r, c
}

func TestEventApprovedOK(t *testing.T) {
	engine := &fakeEngine{stats: nudge.SignalStats{Sent: 3, Skipped: 1}}
	r, _ := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/e42/approved", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e42", engine.lastID)

	var stats nudge.SignalStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
}

func TestEventApprovedNotFound(t *testing.T) {
	engine := &fakeEngine{
		stats:    nudge.SignalStats{Errors: 1},
		eventErr: fmt.Errorf("event e42: %w", nudge.ErrEventNotFound),
	}
	r, _ := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/e42/approved", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "EVENT_NOT_FOUND")
}

func TestEventApprovedEngineFailure(t *testing.T) {
	engine := &fakeEngine{eventErr: fmt.Errorf("connection refused")}
	r, _ := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/e42/approved", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "PROCESSING_FAILED")
}

func TestRunNudgesReturnsResultAndCachesStatus(t *testing.T) {
	engine := &fakeEngine{result: &nudge.RunResult{
		RanAt:      time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC),
		Inactivity: nudge.SignalStats{Sent: 5},
		Duration:   "120ms",
	}}
	r, _ := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nudges/run", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var result nudge.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 5, result.Inactivity.Sent)

	// The run is now visible on the status endpoint.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/nudges/status", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "120ms", result.Duration)
}

func TestNudgeStatusBeforeAnyRun(t *testing.T) {
	r, _ := newTestRouter(&fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nudges/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NO_RUNS")
}

func TestNudgeStatusETagRoundTrip(t *testing.T) {
	engine := &fakeEngine{result: &nudge.RunResult{Duration: "50ms"}}
	r, _ := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nudges/run", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/nudges/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/nudges/status", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}
