package controller

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// fakeOBS is a minimal unauthenticated obs-websocket 5 server.
type fakeOBS struct {
	srv *httptest.Server

	mu      sync.Mutex
	scenes  []string
	current string
	sets    []string
	gate    chan struct{}
	conns   []net.Conn
}

func newFakeOBS(t *testing.T, scenes ...string) *fakeOBS {
	t.Helper()
	f := &fakeOBS{scenes: scenes}
	if len(scenes) > 0 {
		f.current = scenes[0]
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	t.Cleanup(f.dropAll)
	return f
}

func (f *fakeOBS) url() string { return "ws" + strings.TrimPrefix(f.srv.URL, "http") }

func (f *fakeOBS) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeOBS) setCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sets...)
}

// holdSets makes SetCurrentProgramScene wait until the returned func is called.
func (f *fakeOBS) holdSets() func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func write(conn net.Conn, mu *sync.Mutex, op int, d any) {
	payload, _ := json.Marshal(map[string]any{"op": op, "d": d})
	mu.Lock()
	defer mu.Unlock()
	_ = wsutil.WriteServerText(conn, payload)
}

func (f *fakeOBS) serve(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	var wmu sync.Mutex
	write(conn, &wmu, 0, map[string]any{"obsWebSocketVersion": "5.0.0", "rpcVersion": 1})
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var env struct {
			Op int             `json:"op"`
			D  json.RawMessage `json:"d"`
		}
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		switch env.Op {
		case 1:
			write(conn, &wmu, 2, map[string]any{"negotiatedRpcVersion": 1})
		case 6:
			var req struct {
				RequestType string         `json:"requestType"`
				RequestID   string         `json:"requestId"`
				RequestData map[string]any `json:"requestData"`
			}
			if json.Unmarshal(env.D, &req) != nil {
				continue
			}
			go f.answer(conn, &wmu, req.RequestType, req.RequestID, req.RequestData)
		}
	}
}

func (f *fakeOBS) answer(conn net.Conn, wmu *sync.Mutex, requestType, id string, data map[string]any) {
	var out any
	switch requestType {
	case "GetSceneList":
		f.mu.Lock()
		list := make([]map[string]any, len(f.scenes))
		for i, s := range f.scenes {
			list[i] = map[string]any{"sceneName": s, "sceneIndex": i}
		}
		f.mu.Unlock()
		out = map[string]any{"scenes": list}
	case "GetCurrentProgramScene":
		f.mu.Lock()
		out = map[string]any{"currentProgramSceneName": f.current}
		f.mu.Unlock()
	case "SetCurrentProgramScene":
		f.mu.Lock()
		gate := f.gate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		name, _ := data["sceneName"].(string)
		f.mu.Lock()
		f.sets = append(f.sets, name)
		f.current = name
		f.mu.Unlock()
	}
	write(conn, wmu, 7, map[string]any{
		"requestType":  requestType,
		"requestId":    id,
		"status":       "ok",
		"responseData": out,
	})
}
