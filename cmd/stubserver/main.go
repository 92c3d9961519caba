// Command stubserver runs the in-memory waxtrade backend for local
// development. State lives in process memory and is gone on restart.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waxtrade/internal/infra/config"
	"waxtrade/internal/infra/obs"
	"waxtrade/internal/infra/stub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Config{Env: "dev", HTTPAddr: ":5001", TokenSecret: "waxtrade-dev-secret"}
	}
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
	}

	backend := stub.NewServer(cfg.TokenSecret, cfg.TokenTTL, logger)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: backend.Router(cfg.Env)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("stub backend starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stub backend stopped")
}
