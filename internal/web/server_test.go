package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanta-app/cluster-faces/internal/engine"
)

func newTestServer() *Server {
	return NewServer("127.0.0.1", 0, zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body %q, got %q", "ok", rec.Body.String())
	}
}

func TestStatusBeforeFirstPass(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "waiting for first pass" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestStatusAfterPass(t *testing.T) {
	s := newTestServer()

	s.SetSummary(engine.Summary{
		StartedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Processed: 2,
		Skipped:   1,
		Events: []engine.EventResult{
			{EventID: 7, Outcome: engine.OutcomeProcessed, Faces: 120, Clusters: 9},
			{EventID: 8, Outcome: engine.OutcomeSkipped},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var got engine.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Processed != 2 || got.Skipped != 1 {
		t.Errorf("unexpected counts: processed=%d skipped=%d", got.Processed, got.Skipped)
	}
	if len(got.Events) != 2 || got.Events[0].EventID != 7 {
		t.Errorf("unexpected events: %+v", got.Events)
	}
}
