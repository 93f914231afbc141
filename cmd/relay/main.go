package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/chessobs/internal/config"
	"github.com/dgnsrekt/chessobs/internal/logutil"
	"github.com/dgnsrekt/chessobs/internal/relay"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		slog.Error("failed to load relay config", "error", err)
		os.Exit(1)
	}

	if err := logutil.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	broker := relay.NewBroker()
	store := relay.NewStore(broker)
	srv := &http.Server{Addr: cfg.BindAddr, Handler: relay.NewServer(store, broker)}

	go func() {
		slog.Info("relay listening", "addr", cfg.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("relay server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("relay shutdown failed", "error", err)
	}
}
