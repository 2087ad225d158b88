package diag

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var startTime = time.Now()

// StatsSource is whatever can report a point-in-time engine snapshot.
// *engine.Engine does not satisfy it directly (its Stats returns
// engine.Stats); cmd/classicd wraps it in an adapter, so diag never
// imports engine, which would otherwise create an import cycle through
// dispatch.WorldHook.
type StatsSource interface {
	Stats() EngineStats
}

// EngineStats mirrors engine.Stats; kept as its own type so diag has no
// compile-time dependency on the engine package.
type EngineStats struct {
	SessionsActive int
	SessionsMax    int
	FramesFree     int
	FramesMax      int
	TraceSeq       uint64
}

// HealthHandler serves liveness/readiness/stats endpoints, negotiating
// JSON or msgpack from the Accept header: msgpack only when the header is
// exactly "application/msgpack" (the trace feed instead accepts it
// anywhere in the header), JSON otherwise.
type HealthHandler struct {
	source StatsSource
}

func NewHealthHandler(source StatsSource) *HealthHandler {
	return &HealthHandler{source: source}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/readyz", "/ready":
		h.readiness(w, r)
	case "/stats":
		h.stats(w, r)
	default:
		h.liveness(w, r)
	}
}

func (h *HealthHandler) liveness(w http.ResponseWriter, r *http.Request) {
	writeNegotiated(w, r, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	stats := h.source.Stats()
	ready := stats.SessionsActive < stats.SessionsMax
	status := http.StatusOK
	statusStr := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusStr = "not_ready"
	}
	writeNegotiated(w, r, status, map[string]interface{}{
		"status": statusStr,
		"uptime": time.Since(startTime).String(),
	})
}

func (h *HealthHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.source.Stats()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeNegotiated(w, r, http.StatusOK, map[string]interface{}{
		"sessions": map[string]interface{}{
			"active": stats.SessionsActive,
			"max":    stats.SessionsMax,
		},
		"frames": map[string]interface{}{
			"free": stats.FramesFree,
			"max":  stats.FramesMax,
		},
		"trace_seq": stats.TraceSeq,
		"memory": map[string]interface{}{
			"alloc_mb": mem.Alloc / 1024 / 1024,
			"sys_mb":   mem.Sys / 1024 / 1024,
		},
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	})
}

func writeNegotiated(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if r.Header.Get("Accept") == "application/msgpack" {
		body, err := msgpack.Marshal(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		w.WriteHeader(status)
		w.Write(body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
