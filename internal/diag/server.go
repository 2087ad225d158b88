package diag

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"

	"github.com/classicwire/classicd/internal/config"
)

// Server is the diagnostics HTTP(S) surface: health/stats/trace, with
// TLS and HTTP/3 both optional add-ons the wire protocol itself never
// depends on.
type Server struct {
	cfg    *config.DiagConfig
	logger *slog.Logger
	router *Router
	http   *http.Server
	http3  *HTTP3Server
}

// New builds the diagnostics server. source feeds /stats and /readyz;
// the returned Server's Hub() (nil if tracing is disabled) should be
// wired to the dispatcher as its dispatch.WorldHook.
func New(cfg *config.DiagConfig, source StatsSource, logger *slog.Logger) *Server {
	router := NewRouter(cfg, source, logger)
	handler := router.Handler()
	if cfg.HTTP3.Enabled {
		handler = AltSvcMiddleware(cfg.Address)(handler)
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		http: &http.Server{
			Addr:    cfg.Address,
			Handler: handler,
		},
	}
}

// Hub exposes the trace broadcaster for wiring into the dispatcher.
func (s *Server) Hub() *Hub { return s.router.Hub() }

// Start begins serving. It blocks until the listener is closed.
func (s *Server) Start() error {
	s.logger.Info("diag surface starting", "address", s.cfg.Address, "tls", s.cfg.TLS.Auto, "http3", s.cfg.HTTP3.Enabled)

	if s.cfg.TLS.Auto || (s.cfg.TLS.Cert != "" && s.cfg.TLS.Key != "") {
		return s.startTLS()
	}
	return s.http.ListenAndServe()
}

func (s *Server) startTLS() error {
	var tlsConfig *tls.Config
	if s.cfg.TLS.Cert != "" && s.cfg.TLS.Key != "" {
		cfg, err := selfSignedTLSConfig(s.cfg.TLS.Cert, s.cfg.TLS.Key)
		if err != nil {
			return err
		}
		tlsConfig = cfg
	} else {
		manager, err := NewACMEManager(&s.cfg.TLS.ACME, s.logger)
		if err != nil {
			return err
		}
		tlsConfig = manager.TLSConfig()
		go HTTPChallengeServer(":80", manager, s.logger).ListenAndServe()
	}
	s.http.TLSConfig = tlsConfig

	if s.cfg.HTTP3.Enabled {
		s.http3 = NewHTTP3Server(s.cfg.Address, s.http.Handler, tlsConfig, s.logger)
		go s.http3.Start()
	}
	return s.http.ListenAndServeTLS("", "")
}

// Stop gracefully shuts down the HTTP and (if running) HTTP/3 listeners.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("diag surface shutting down")
	if s.http3 != nil {
		s.http3.Stop(ctx)
	}
	return s.http.Shutdown(ctx)
}
