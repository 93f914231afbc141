package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chessobs/internal/controller"
	"github.com/dgnsrekt/chessobs/internal/lichess"
)

func registerBoardHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "director-state", Method: http.MethodGet, Path: "/api/v1/state", Summary: "Current board, turn and active scene", Tags: []string{"Board"}},
		func(ctx context.Context, input *struct{}) (*struct{ Body controller.State }, error) {
			return &struct{ Body controller.State }{Body: svc.State()}, nil
		})

	type gamesOutput struct {
		Body struct {
			Games []lichess.Game `json:"games"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-games", Method: http.MethodGet, Path: "/api/v1/games", Summary: "Games from the last fetched broadcast round", Tags: []string{"Board"}},
		func(ctx context.Context, input *struct{}) (*gamesOutput, error) {
			out := &gamesOutput{}
			out.Body.Games = svc.Games()
			return out, nil
		})

	type fetchGamesInput struct {
		Body struct {
			BroadcastURL string `json:"broadcast_url,omitempty" doc:"Broadcast round URL. Omit to use the one reported by the scraper."`
		} `required:"false"`
	}
	huma.Register(api, huma.Operation{OperationID: "fetch-games", Method: http.MethodPost, Path: "/api/v1/games/fetch", Summary: "Fetch broadcast round games from Lichess", Tags: []string{"Board"}},
		func(ctx context.Context, input *fetchGamesInput) (*gamesOutput, error) {
			games, err := svc.FetchGames(ctx, input.Body.BroadcastURL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &gamesOutput{}
			out.Body.Games = games
			return out, nil
		})
}
