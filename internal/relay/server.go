// Package relay is the HTTP relay between the page scraper and the
// director: it stores the latest board info and presence readings and
// serves them to pollers and SSE subscribers.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/chessobs/internal/board"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 64 << 10

// NewServer builds the relay router. The plain /status and /presence routes
// keep the loose JSON the scraper and pollers exchange; /api/v1 is the typed
// read-only view.
func NewServer(store *Store, broker *Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "Server is running!")
	})
	router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Board())
	})
	router.Get("/presence", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Presence())
	})
	router.Post("/presence", func(w http.ResponseWriter, r *http.Request) {
		var report board.PresenceReport
		if !decodeBody(w, r, &report) {
			return
		}
		if err := store.SetPresence(report); err != nil {
			writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Message: err.Error()})
			return
		}
		slog.Debug("presence updated", "ndi_name", report.NDIName, "player_present", report.PlayerPresent)
		writeJSON(w, http.StatusOK, statusBody{Status: "success"})
	})
	postBoard := func(w http.ResponseWriter, r *http.Request) {
		var info board.Info
		if !decodeBody(w, r, &info) {
			return
		}
		store.SetBoard(info)
		slog.Info("board updated", "broadcast_url", info.BroadcastURL, "board", int(info.BoardNumber), "total", int(info.TotalBoards), "turn", string(info.Turn))
		writeJSON(w, http.StatusOK, statusBody{Status: "success"})
	}
	router.Post("/", postBoard)
	router.Post("/status", postBoard)
	router.Get("/events", SSEHandler(broker))

	cfg := huma.DefaultConfig("Chess Broadcast Relay API", "1.0.0")
	api := humachi.New(router, cfg)
	registerHandlers(api, store, broker)

	return router
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func registerHandlers(api huma.API, store *Store, broker *Broker) {
	type healthOutput struct {
		Body struct {
			Status      string `json:"status"`
			SSEClients  int    `json:"sse_clients"`
			LastUpdated string `json:"last_updated,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "relay-health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.SSEClients = broker.ClientCount()
			if ts := store.UpdatedAt(); !ts.IsZero() {
				out.Body.LastUpdated = ts.UTC().Format(time.RFC3339)
			}
			return out, nil
		})

	type boardOutput struct {
		Body board.Info
	}
	huma.Register(api, huma.Operation{OperationID: "get-board", Method: http.MethodGet, Path: "/api/v1/board", Summary: "Latest board info", Tags: []string{"Board"}},
		func(ctx context.Context, input *struct{}) (*boardOutput, error) {
			return &boardOutput{Body: store.Board()}, nil
		})

	type presenceOutput struct {
		Body map[string]board.Presence
	}
	huma.Register(api, huma.Operation{OperationID: "get-presence", Method: http.MethodGet, Path: "/api/v1/presence", Summary: "Latest presence readings", Tags: []string{"Presence"}},
		func(ctx context.Context, input *struct{}) (*presenceOutput, error) {
			return &presenceOutput{Body: store.Presence()}, nil
		})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		slog.Warn("relay rejected body", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Message: "Invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("relay response write failed", "error", err)
	}
}

// cors opens every route to browser extensions and answers preflights.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
