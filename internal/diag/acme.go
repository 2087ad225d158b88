package diag

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"

	"github.com/classicwire/classicd/internal/config"
)

// NewACMEManager creates an autocert manager for Let's Encrypt, used to
// terminate TLS in front of the diagnostics surface (never the game
// wire protocol itself, which stays a raw TCP listener).
func NewACMEManager(cfg *config.ACMEConfig, logger *slog.Logger) (*autocert.Manager, error) {
	if cfg.Email == "" {
		return nil, fmt.Errorf("diag: ACME email is required")
	}
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("diag: ACME domains are required")
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "/var/lib/classicd/certs"
	}
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("diag: creating cert cache dir: %w", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	if cfg.Staging {
		manager.Client = &acme.Client{DirectoryURL: "https://acme-staging-v02.api.letsencrypt.org/directory"}
		logger.Info("diag: using Let's Encrypt staging server")
	}

	return manager, nil
}

// HTTPChallengeServer starts an HTTP server handling ACME HTTP-01
// challenges and redirecting everything else to HTTPS.
func HTTPChallengeServer(addr string, manager *autocert.Manager, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpsURL := "https://" + r.Host + r.URL.Path
		if r.URL.RawQuery != "" {
			httpsURL += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
	})
	return &http.Server{
		Addr:    addr,
		Handler: manager.HTTPHandler(mux),
	}
}

func selfSignedTLSConfig(cert, key string) (*tls.Config, error) {
	tlsCert, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("diag: loading cert/key: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{tlsCert}, MinVersion: tls.VersionTLS12}, nil
}
