package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/chessobs/internal/controller"
	"github.com/dgnsrekt/chessobs/internal/lichess"
	"github.com/dgnsrekt/chessobs/internal/mapping"
	"github.com/dgnsrekt/chessobs/internal/obsws"
	"github.com/dgnsrekt/chessobs/internal/relay"
	"github.com/dgnsrekt/chessobs/internal/telemetry"
)

type Service interface {
	OBSStatus() controller.OBSStatus
	ConnectOBS(ctx context.Context, url, password string) (controller.OBSStatus, error)
	DisconnectOBS() controller.OBSStatus
	Scenes() []obsws.Scene
	RefreshScenes(ctx context.Context) ([]obsws.Scene, error)
	CurrentScene(ctx context.Context) (string, error)
	SwitchScene(ctx context.Context, name string) (obsws.SwitchResult, error)

	Mapping() mapping.Mapping
	PutMapping(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error)
	SetBoard(ctx context.Context, n int, scenes mapping.BoardScenes) (mapping.Mapping, error)
	CopyBoard(ctx context.Context, n int) (mapping.BoardScenes, error)
	ResetMapping(ctx context.Context) error
	ExportMapping() string
	ImportMapping(ctx context.Context, text string) (mapping.Mapping, error)

	State() controller.State
	FetchGames(ctx context.Context, broadcastURL string) ([]lichess.Game, error)
	Games() []lichess.Game
}

// NewServer builds the director HTTP API. broker may be nil, in which case
// /events is not served.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Chess OBS Director API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Handle("/metrics", telemetry.Handler())
	if broker != nil {
		router.Get("/events", relay.SSEHandler(broker))
	}

	registerHealthHandlers(api, svc)
	registerOBSHandlers(api, svc)
	registerMappingHandlers(api, svc)
	registerBoardHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var verr *controller.ValidationError
	if errors.As(err, &verr) {
		return huma.Error400BadRequest(verr.Message)
	}
	switch {
	case errors.Is(err, mapping.ErrNothingToCopy), errors.Is(err, lichess.ErrInvalidBroadcastURL):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	var coded *obsws.CodedError
	if errors.As(err, &coded) {
		msg := fmt.Sprintf("%s: %s", coded.Code, coded.Message)
		switch coded.Code {
		case obsws.CodeSceneNotFound:
			return huma.Error404NotFound(msg)
		case obsws.CodeSwitchAlreadyInProgress:
			return huma.Error409Conflict(msg)
		case obsws.CodeNotConnected:
			return huma.Error503ServiceUnavailable(msg)
		case obsws.CodeTimeout, obsws.CodeTimedOut:
			return huma.Error504GatewayTimeout(msg)
		case obsws.CodeAuthFailed, obsws.CodeVersionMismatch, obsws.CodeDialFailure, obsws.CodeSendFailure,
			obsws.CodeRequestFailed, obsws.CodeInvalidResponse, obsws.CodeSwitchVerificationFailed:
			return huma.Error502BadGateway(msg)
		default:
			return huma.Error500InternalServerError(msg)
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
