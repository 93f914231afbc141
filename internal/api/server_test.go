package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chessobs/internal/controller"
	"github.com/dgnsrekt/chessobs/internal/lichess"
	"github.com/dgnsrekt/chessobs/internal/mapping"
	"github.com/dgnsrekt/chessobs/internal/obsws"
	"github.com/dgnsrekt/chessobs/internal/relay"
)

type stubService struct {
	mapping   mapping.Mapping
	switchErr error
	switched  string
}

func newStub() *stubService { return &stubService{mapping: mapping.Mapping{}} }

func (s *stubService) OBSStatus() controller.OBSStatus {
	return controller.OBSStatus{Connected: true, State: "identified"}
}
func (s *stubService) ConnectOBS(ctx context.Context, url, password string) (controller.OBSStatus, error) {
	return s.OBSStatus(), nil
}
func (s *stubService) DisconnectOBS() controller.OBSStatus {
	return controller.OBSStatus{State: "disconnected"}
}
func (s *stubService) Scenes() []obsws.Scene {
	return []obsws.Scene{{Name: "Board 1", Index: 0}}
}
func (s *stubService) RefreshScenes(ctx context.Context) ([]obsws.Scene, error) { return s.Scenes(), nil }
func (s *stubService) CurrentScene(ctx context.Context) (string, error)         { return "Board 1", nil }
func (s *stubService) SwitchScene(ctx context.Context, name string) (obsws.SwitchResult, error) {
	if s.switchErr != nil {
		return obsws.SwitchResult{}, s.switchErr
	}
	s.switched = name
	return obsws.SwitchResult{Requested: name, Scene: "Board 1", Match: obsws.MatchCaseInsensitive, Attempts: 1}, nil
}
func (s *stubService) Mapping() mapping.Mapping { return s.mapping.Clone() }
func (s *stubService) PutMapping(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	s.mapping = m
	return m, nil
}
func (s *stubService) SetBoard(ctx context.Context, n int, scenes mapping.BoardScenes) (mapping.Mapping, error) {
	s.mapping.Set(n, scenes)
	return s.mapping.Clone(), nil
}
func (s *stubService) CopyBoard(ctx context.Context, n int) (mapping.BoardScenes, error) {
	return s.mapping.Copy(n)
}
func (s *stubService) ResetMapping(ctx context.Context) error {
	s.mapping = mapping.Mapping{}
	return nil
}
func (s *stubService) ExportMapping() string { return mapping.Export(s.mapping) }
func (s *stubService) ImportMapping(ctx context.Context, text string) (mapping.Mapping, error) {
	return mapping.Import(text)
}
func (s *stubService) State() controller.State { return controller.State{ActiveKey: "1-white"} }
func (s *stubService) FetchGames(ctx context.Context, url string) ([]lichess.Game, error) {
	return nil, lichess.ErrInvalidBroadcastURL
}
func (s *stubService) Games() []lichess.Game { return []lichess.Game{} }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDocsDarkMode(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodGet, "/docs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
}

func TestSwitchScene(t *testing.T) {
	stub := newStub()
	h := NewServer(stub, relay.NewBroker())

	w := do(t, h, http.MethodPost, "/api/v1/obs/scene", `{"scene":"board 1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["scene"] != "Board 1" || got["match"] != "case_insensitive" {
		t.Fatalf("body = %v", got)
	}
	if stub.switched != "board 1" {
		t.Fatalf("switched = %q", stub.switched)
	}
}

func TestSwitchSceneErrorMapping(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{obsws.CodeSceneNotFound, http.StatusNotFound},
		{obsws.CodeSwitchAlreadyInProgress, http.StatusConflict},
		{obsws.CodeNotConnected, http.StatusServiceUnavailable},
		{obsws.CodeTimeout, http.StatusGatewayTimeout},
		{obsws.CodeSwitchVerificationFailed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			stub := newStub()
			stub.switchErr = &obsws.CodedError{Code: tt.code, Message: "boom"}
			w := do(t, NewServer(stub, nil), http.MethodPost, "/api/v1/obs/scene", `{"scene":"x"}`)
			if w.Code != tt.want {
				t.Fatalf("status = %d; want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMapErrValidation(t *testing.T) {
	err := mapErr(&controller.ValidationError{Field: "scene", Message: "scene is required"})
	var se huma.StatusError
	if !errors.As(err, &se) || se.GetStatus() != http.StatusBadRequest {
		t.Fatalf("mapErr() = %v; want 400", err)
	}
	if mapErr(nil) != nil {
		t.Fatalf("mapErr(nil) != nil")
	}
}

func TestMappingEndpoints(t *testing.T) {
	stub := newStub()
	h := NewServer(stub, nil)

	w := do(t, h, http.MethodPut, "/api/v1/mapping/2", `{"white":"Cam 2","black":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set board status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/api/v1/mapping/2/copy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("copy status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := stub.mapping[2]; got.Black != "Cam 2" {
		t.Fatalf("mapping[2] = %+v", got)
	}

	w = do(t, h, http.MethodGet, "/api/v1/mapping", "")
	var body boardsBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Boards["2"].White != "Cam 2" {
		t.Fatalf("boards = %v", body.Boards)
	}

	w = do(t, h, http.MethodGet, "/api/v1/mapping/export", "")
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") || !strings.Contains(w.Body.String(), "Cam 2") {
		t.Fatalf("export = %q (%s)", w.Body.String(), w.Header().Get("Content-Type"))
	}

	w = do(t, h, http.MethodPost, "/api/v1/mapping/3/copy", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("copy empty board status = %d; want 400", w.Code)
	}

	w = do(t, h, http.MethodPut, "/api/v1/mapping", `{"boards":{"x":{"white":"a","black":"b"}}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad key status = %d; want 400", w.Code)
	}
}

func TestFetchGamesInvalidURL(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodPost, "/api/v1/games/fetch", `{"broadcast_url":"https://lichess.org/tv"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestMetricsServed(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
