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

	"github.com/dgnsrekt/chessobs/internal/api"
	"github.com/dgnsrekt/chessobs/internal/board"
	"github.com/dgnsrekt/chessobs/internal/config"
	"github.com/dgnsrekt/chessobs/internal/controller"
	"github.com/dgnsrekt/chessobs/internal/journal"
	"github.com/dgnsrekt/chessobs/internal/lichess"
	"github.com/dgnsrekt/chessobs/internal/logutil"
	"github.com/dgnsrekt/chessobs/internal/mapping"
	"github.com/dgnsrekt/chessobs/internal/netutil"
	"github.com/dgnsrekt/chessobs/internal/notify"
	"github.com/dgnsrekt/chessobs/internal/obsws"
	"github.com/dgnsrekt/chessobs/internal/poller"
	"github.com/dgnsrekt/chessobs/internal/relay"
	"github.com/dgnsrekt/chessobs/internal/telemetry"
)

const relayRetryInterval = 2 * time.Second

func main() {
	cfg, err := config.LoadDirector()
	if err != nil {
		slog.Error("failed to load director config", "error", err)
		os.Exit(1)
	}

	if err := logutil.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("director config loaded",
		"obs_url", cfg.OBSURL,
		"obs_auto_connect", cfg.OBSAutoConnect,
		"obs_request_timeout_ms", cfg.OBSRequestTimeoutMS,
		"obs_tolerate_switch_errors", cfg.OBSTolerateSwitchErrors,
		"relay_url", cfg.RelayURL,
		"relay_poll_ms", cfg.RelayPollMS,
		"presence_enabled", cfg.PresenceEnabled,
		"bind_addr", cfg.BindAddr,
		"port_candidates", cfg.PortCandidates,
		"mapping_file", cfg.MappingFile,
		"mapping_redis", cfg.MappingRedisURL != "",
		"journal_dir", cfg.JournalDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr := ln.Addr().String()

	telemetry.Init()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openMappingStore(ctx, cfg)
	defer closeStore()

	obs := obsws.New(obsws.Options{
		RequestTimeout:            cfg.RequestTimeout(),
		HandshakeTimeout:          cfg.HandshakeTimeout(),
		SettleDelay:               cfg.SettleDelay(),
		TolerateSceneSwitchErrors: cfg.OBSTolerateSwitchErrors,
		OnRequest:                 telemetry.ObserveOBSRequest,
	})
	var journalRec controller.Recorder
	if cfg.JournalDir != "" {
		jw := journal.New(cfg.JournalDir, 256, 25)
		defer func() {
			if err := jw.Close(); err != nil {
				slog.Debug("journal close failed", "error", err)
			}
		}()
		journalRec = jw
	}

	broker := relay.NewBroker()
	svc := controller.NewService(controller.Deps{
		OBS:         obs,
		OBSURL:      cfg.OBSURL,
		OBSPassword: cfg.OBSPassword,
		Store:       store,
		Lichess:     lichess.NewClient(cfg.LichessAPIBase, nil),
		Broker:      broker,
		Notifier:    notify.New(cfg.NTFYEndpoint, nil),
		Journal:     journalRec,
	})
	if err := svc.LoadMapping(ctx); err != nil {
		slog.Warn("failed to load scene mapping", "error", err)
	}

	boards := poller.New[board.Info]("status", cfg.RelayURL, "/status", cfg.PollInterval(), nil)
	boards.OnUpdate(func(info board.Info) { svc.HandleBoardUpdate(ctx, info) })
	boards.OnConnectionChanged(svc.HandleRelayConnectionChanged)
	boards.OnPoll(func(err error) { telemetry.RecordPoll("status", err) })
	go connectWithRetry(ctx, boards.Connect)
	defer boards.Stop()

	if cfg.PresenceEnabled {
		presence := poller.New[map[string]board.Presence]("presence", cfg.RelayURL, "/presence", cfg.PollInterval(), nil)
		presence.OnUpdate(svc.HandlePresence)
		presence.OnPoll(func(err error) { telemetry.RecordPoll("presence", err) })
		go connectWithRetry(ctx, presence.Connect)
		defer presence.Stop()
	}

	if cfg.OBSAutoConnect {
		go func() {
			if _, err := svc.ConnectOBS(ctx, "", ""); err != nil {
				slog.Warn("obs auto-connect failed", "url", cfg.OBSURL, "code", obsws.ErrorCode(err), "error", err)
			}
		}()
	}

	srv := &http.Server{Handler: api.NewServer(svc, broker)}
	go func() {
		slog.Info("director listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("director server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("director shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("director shutdown failed", "error", err)
	}
	svc.DisconnectOBS()
	svc.Close()
}

func openMappingStore(ctx context.Context, cfg *config.DirectorConfig) (mapping.Store, func()) {
	if cfg.MappingRedisURL == "" {
		return mapping.NewFileStore(cfg.MappingFile), func() {}
	}
	rs, err := mapping.NewRedisStore(ctx, cfg.MappingRedisURL, cfg.MappingRedisKey)
	if err != nil {
		slog.Error("failed to open redis mapping store", "error", err)
		os.Exit(1)
	}
	return rs, func() {
		if err := rs.Close(); err != nil {
			slog.Debug("redis close failed", "error", err)
		}
	}
}

// connectWithRetry calls connect until it succeeds or ctx ends.
func connectWithRetry(ctx context.Context, connect func(context.Context) error) {
	for {
		if err := connect(ctx); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryInterval):
		}
	}
}
