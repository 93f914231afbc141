package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chessobs/internal/mapping"
)

// boardsBody carries a mapping with string board keys so the OpenAPI schema
// stays a plain JSON object.
type boardsBody struct {
	Boards map[string]mapping.BoardScenes `json:"boards"`
}

func toBody(m mapping.Mapping) boardsBody {
	out := boardsBody{Boards: make(map[string]mapping.BoardScenes, len(m))}
	for n, scenes := range m {
		out.Boards[strconv.Itoa(n)] = scenes
	}
	return out
}

func fromBody(b boardsBody) (mapping.Mapping, error) {
	m := mapping.Mapping{}
	for k, scenes := range b.Boards {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			return nil, huma.Error400BadRequest("board keys must be positive integers, got " + strconv.Quote(k))
		}
		m[n] = scenes
	}
	return m, nil
}

type mappingOutput struct {
	Body boardsBody
}

type boardPath struct {
	Board int `path:"board" minimum:"1"`
}

func registerMappingHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-mapping", Method: http.MethodGet, Path: "/api/v1/mapping", Summary: "Get board to scene mapping", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *struct{}) (*mappingOutput, error) {
			return &mappingOutput{Body: toBody(svc.Mapping())}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "put-mapping", Method: http.MethodPut, Path: "/api/v1/mapping", Summary: "Replace the whole mapping", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *struct{ Body boardsBody }) (*mappingOutput, error) {
			m, err := fromBody(input.Body)
			if err != nil {
				return nil, err
			}
			saved, err := svc.PutMapping(ctx, m)
			if err != nil {
				return nil, mapErr(err)
			}
			return &mappingOutput{Body: toBody(saved)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset-mapping", Method: http.MethodDelete, Path: "/api/v1/mapping", Summary: "Clear the mapping", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *struct{}) (*mappingOutput, error) {
			if err := svc.ResetMapping(ctx); err != nil {
				return nil, mapErr(err)
			}
			return &mappingOutput{Body: toBody(mapping.Mapping{})}, nil
		})

	type setBoardInput struct {
		Board int `path:"board" minimum:"1"`
		Body  mapping.BoardScenes
	}
	huma.Register(api, huma.Operation{OperationID: "set-board-mapping", Method: http.MethodPut, Path: "/api/v1/mapping/{board}", Summary: "Set scenes for one board", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *setBoardInput) (*mappingOutput, error) {
			saved, err := svc.SetBoard(ctx, input.Board, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &mappingOutput{Body: toBody(saved)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "copy-board-mapping", Method: http.MethodPost, Path: "/api/v1/mapping/{board}/copy", Summary: "Mirror one side's scene onto the other", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *boardPath) (*struct{ Body mapping.BoardScenes }, error) {
			scenes, err := svc.CopyBoard(ctx, input.Board)
			if err != nil {
				return nil, mapErr(err)
			}
			return &struct{ Body mapping.BoardScenes }{Body: scenes}, nil
		})

	type exportOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{OperationID: "export-mapping", Method: http.MethodGet, Path: "/api/v1/mapping/export", Summary: "Export mapping as a text table", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *struct{}) (*exportOutput, error) {
			return &exportOutput{ContentType: "text/plain; charset=utf-8", Body: []byte(svc.ExportMapping())}, nil
		})

	type importInput struct {
		Body struct {
			Text string `json:"text" required:"true" doc:"Table produced by the export endpoint"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "import-mapping", Method: http.MethodPost, Path: "/api/v1/mapping/import", Summary: "Merge a text table into the mapping", Tags: []string{"Mapping"}},
		func(ctx context.Context, input *importInput) (*mappingOutput, error) {
			saved, err := svc.ImportMapping(ctx, input.Body.Text)
			if err != nil {
				return nil, mapErr(err)
			}
			return &mappingOutput{Body: toBody(saved)}, nil
		})
}
