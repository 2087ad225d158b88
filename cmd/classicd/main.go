package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classicwire/classicd/internal/config"
	"github.com/classicwire/classicd/internal/diag"
	"github.com/classicwire/classicd/internal/engine"
	"github.com/classicwire/classicd/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve", "start":
		serve()
	case "version":
		fmt.Printf("classicd v%s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serve() {
	cfgPath := "classicd.yaml"
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}

	logger, startupCloser := logging.New("info", "json", "stdout")
	if startupCloser != nil {
		defer startupCloser.Close()
	}
	logger.Info("classicd starting", "version", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if startupCloser != nil {
		_ = startupCloser.Close()
		startupCloser = nil
	}
	logger, logCloser := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if logCloser != nil {
		defer closeQuietly(logCloser)
	}

	eng, err := engine.New(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	var diagServer *diag.Server
	if cfg.Diag.Enabled {
		diagServer = diag.New(&cfg.Diag, statsAdapter{eng}, logger)
		if hub := diagServer.Hub(); hub != nil {
			eng.SetWorldHook(hub)
		}
	}

	if err := eng.Listen(); err != nil {
		logger.Error("failed to bind listener", "address", cfg.Listen.Address, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if diagServer != nil {
		go func() {
			if err := diagServer.Start(); err != nil {
				logger.Error("diag server error", "error", err)
			}
		}()
	}

	go func() {
		if err := eng.Run(ctx); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	logger.Info("classicd ready", "address", cfg.Listen.Address)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	cancel()

	if diagServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := diagServer.Stop(shutdownCtx); err != nil {
			logger.Error("diag server shutdown error", "error", err)
		}
	}

	logger.Info("classicd stopped")
}

func closeQuietly(c io.Closer) { c.Close() }

type statsAdapter struct{ e *engine.Engine }

func (a statsAdapter) Stats() diag.EngineStats {
	s := a.e.Stats()
	return diag.EngineStats{
		SessionsActive: s.SessionsActive,
		SessionsMax:    s.SessionsMax,
		FramesFree:     s.FramesFree,
		FramesMax:      s.FramesMax,
		TraceSeq:       s.TraceSeq,
	}
}

func printUsage() {
	fmt.Println(`classicd - classic multiplayer protocol server

Usage:
  classicd <command> [options]

Commands:
  serve [config]   Start the server (default config: classicd.yaml)
  start [config]   Alias for serve
  version          Show version
  help             Show this help

Signals:
  SIGINT/SIGTERM   Graceful shutdown

Examples:
  classicd serve
  classicd serve /etc/classicd/classicd.yaml
  classicd version`)
}
