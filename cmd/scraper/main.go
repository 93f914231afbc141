package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/chessobs/internal/config"
	"github.com/dgnsrekt/chessobs/internal/logutil"
	"github.com/dgnsrekt/chessobs/internal/scraper"
)

const attachRetryInterval = 5 * time.Second

func main() {
	cfg, err := config.LoadScraper()
	if err != nil {
		slog.Error("failed to load scraper config", "error", err)
		os.Exit(1)
	}

	if err := logutil.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("scraper config loaded",
		"cdp_url", cfg.CDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"interval_ms", cfg.IntervalMS,
		"relay_url", cfg.RelayURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := scraper.New(scraper.Options{
		CDPURL:       cfg.CDPURL(),
		TabURLFilter: cfg.TabURLFilter,
		Interval:     cfg.Interval(),
		RelayURL:     cfg.RelayURL,
	})
	defer s.Close()

	for {
		err := s.Attach(ctx)
		if err == nil {
			break
		}
		slog.Warn("failed to attach to broadcast tab", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(attachRetryInterval):
		}
	}

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scraper stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("scraper shutting down")
}
