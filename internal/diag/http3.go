package diag

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

// HTTP3Server wraps the optional HTTP/3 (QUIC) listener for the
// diagnostics surface. Never created without a TLS config: QUIC has no
// cleartext mode.
type HTTP3Server struct {
	server *http3.Server
	logger *slog.Logger
}

func NewHTTP3Server(addr string, handler http.Handler, tlsConfig *tls.Config, logger *slog.Logger) *HTTP3Server {
	if tlsConfig == nil {
		logger.Warn("diag: HTTP/3 requires TLS, skipping")
		return nil
	}
	return &HTTP3Server{
		server: &http3.Server{Addr: addr, Handler: handler, TLSConfig: tlsConfig},
		logger: logger,
	}
}

func (s *HTTP3Server) Start() error {
	if s == nil {
		return nil
	}
	s.logger.Info("diag: starting HTTP/3 server", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *HTTP3Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.server.Close()
}

// AltSvcMiddleware advertises HTTP/3 support on the HTTP/1.1-or-2 path so
// clients can upgrade their next connection.
func AltSvcMiddleware(addr string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Alt-Svc", `h3=":`+portOf(addr)+`"; ma=86400`)
			next.ServeHTTP(w, r)
		})
	}
}

func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
