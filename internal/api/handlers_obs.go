package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chessobs/internal/controller"
	"github.com/dgnsrekt/chessobs/internal/obsws"
)

func registerHealthHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status       string `json:"status"`
			OBSConnected bool   `json:"obs_connected"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.OBSConnected = svc.OBSStatus().Connected
			return out, nil
		})
}

type obsStatusOutput struct {
	Body controller.OBSStatus
}

type scenesOutput struct {
	Body struct {
		Scenes []obsws.Scene `json:"scenes"`
	}
}

func registerOBSHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "obs-status", Method: http.MethodGet, Path: "/api/v1/obs", Summary: "OBS connection status", Tags: []string{"OBS"}},
		func(ctx context.Context, input *struct{}) (*obsStatusOutput, error) {
			return &obsStatusOutput{Body: svc.OBSStatus()}, nil
		})

	type connectInput struct {
		Body struct {
			URL      string `json:"url,omitempty" doc:"obs-websocket URL. Omit to reuse the configured one."`
			Password string `json:"password,omitempty"`
		} `required:"false"`
	}
	huma.Register(api, huma.Operation{OperationID: "obs-connect", Method: http.MethodPost, Path: "/api/v1/obs/connect", Summary: "Connect to OBS", Tags: []string{"OBS"}},
		func(ctx context.Context, input *connectInput) (*obsStatusOutput, error) {
			st, err := svc.ConnectOBS(ctx, input.Body.URL, input.Body.Password)
			if err != nil {
				return nil, mapErr(err)
			}
			return &obsStatusOutput{Body: st}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "obs-disconnect", Method: http.MethodPost, Path: "/api/v1/obs/disconnect", Summary: "Disconnect from OBS", Tags: []string{"OBS"}},
		func(ctx context.Context, input *struct{}) (*obsStatusOutput, error) {
			return &obsStatusOutput{Body: svc.DisconnectOBS()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-scenes", Method: http.MethodGet, Path: "/api/v1/obs/scenes", Summary: "List cached scenes", Tags: []string{"OBS"}},
		func(ctx context.Context, input *struct{}) (*scenesOutput, error) {
			out := &scenesOutput{}
			out.Body.Scenes = svc.Scenes()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "refresh-scenes", Method: http.MethodPost, Path: "/api/v1/obs/scenes/refresh", Summary: "Reload scenes from OBS", Tags: []string{"OBS"}},
		func(ctx context.Context, input *struct{}) (*scenesOutput, error) {
			scenes, err := svc.RefreshScenes(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &scenesOutput{}
			out.Body.Scenes = scenes
			return out, nil
		})

	type currentSceneOutput struct {
		Body struct {
			Scene string `json:"scene"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "current-scene", Method: http.MethodGet, Path: "/api/v1/obs/scene", Summary: "Get the program scene", Tags: []string{"OBS"}},
		func(ctx context.Context, input *struct{}) (*currentSceneOutput, error) {
			name, err := svc.CurrentScene(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &currentSceneOutput{}
			out.Body.Scene = name
			return out, nil
		})

	type switchInput struct {
		Body struct {
			Scene string `json:"scene" required:"true" doc:"Scene name. Matched exactly, then case-insensitively, then by substring."`
		}
	}
	type switchOutput struct {
		Body struct {
			obsws.SwitchResult
			Match string `json:"match"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "switch-scene", Method: http.MethodPost, Path: "/api/v1/obs/scene", Summary: "Switch the program scene", Tags: []string{"OBS"}},
		func(ctx context.Context, input *switchInput) (*switchOutput, error) {
			res, err := svc.SwitchScene(ctx, input.Body.Scene)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &switchOutput{}
			out.Body.SwitchResult = res
			out.Body.Match = res.Match.String()
			return out, nil
		})
}
