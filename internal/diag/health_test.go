package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type fakeStatsSource struct {
	stats EngineStats
}

func (f fakeStatsSource) Stats() EngineStats { return f.stats }

func TestHealthHandlerLiveness(t *testing.T) {
	h := NewHealthHandler(fakeStatsSource{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHealthHandlerReadinessReportsNotReadyWhenFull(t *testing.T) {
	h := NewHealthHandler(fakeStatsSource{stats: EngineStats{SessionsActive: 4, SessionsMax: 4}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when sessions are at capacity, got %d", rr.Code)
	}
}

func TestHealthHandlerReadinessReadyWithHeadroom(t *testing.T) {
	h := NewHealthHandler(fakeStatsSource{stats: EngineStats{SessionsActive: 1, SessionsMax: 4}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with headroom, got %d", rr.Code)
	}
}

func TestHealthHandlerStatsJSON(t *testing.T) {
	h := NewHealthHandler(fakeStatsSource{stats: EngineStats{SessionsActive: 2, SessionsMax: 10, FramesFree: 5, FramesMax: 20, TraceSeq: 42}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sessions, ok := body["sessions"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected sessions object, got %T", body["sessions"])
	}
	if sessions["active"].(float64) != 2 {
		t.Fatalf("expected active=2, got %v", sessions["active"])
	}
}

func TestHealthHandlerStatsMsgpack(t *testing.T) {
	h := NewHealthHandler(fakeStatsSource{stats: EngineStats{SessionsActive: 1, SessionsMax: 2}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Accept", "application/msgpack")
	h.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "application/msgpack" {
		t.Fatalf("expected msgpack content type, got %q", ct)
	}
	var body map[string]interface{}
	if err := msgpack.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal msgpack: %v", err)
	}
}
