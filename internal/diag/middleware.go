package diag

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"
)

// diagResponseWriter tracks status and byte count for request logging,
// pooled since the diagnostics surface is polled far more often than
// the wire protocol itself sees new connections.
var rwPool = sync.Pool{
	New: func() interface{} { return &diagResponseWriter{} },
}

type diagResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func (rw *diagResponseWriter) reset(w http.ResponseWriter) {
	rw.ResponseWriter = w
	rw.statusCode = http.StatusOK
	rw.bytesWritten = 0
	rw.wroteHeader = false
}

func (rw *diagResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *diagResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

var ridBufPool = sync.Pool{
	New: func() interface{} { b := make([]byte, 8); return &b },
}

func requestID() string {
	bp := ridBufPool.Get().(*[]byte)
	b := *bp
	rand.Read(b)
	var dst [16]byte
	hex.Encode(dst[:], b)
	ridBufPool.Put(bp)
	return string(dst[:])
}

// CoreMiddleware recovers panics, tags every request with an ID, and
// logs method/path/status/duration once the handler returns.
func CoreMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "stack", string(debug.Stack()), "path", r.URL.Path)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = requestID()
			}
			w.Header().Set("X-Request-ID", id)

			start := time.Now()
			rw := rwPool.Get().(*diagResponseWriter)
			rw.reset(w)

			next.ServeHTTP(rw, r)

			if logger.Enabled(r.Context(), slog.LevelInfo) {
				logger.LogAttrs(r.Context(), slog.LevelInfo, "diag request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", rw.statusCode),
					slog.Duration("duration", time.Since(start)),
					slog.Int("bytes", rw.bytesWritten),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("request_id", id),
				)
			}

			rwPool.Put(rw)
		})
	}
}
