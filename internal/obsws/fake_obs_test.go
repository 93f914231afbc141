package obsws

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type fakeReply struct {
	drop      bool
	delay     time.Duration
	status    string
	errMsg    string
	obsStatus bool
	data      any
}

// fakeOBS speaks the server side of obs-websocket 5 over httptest.
type fakeOBS struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	rpcVersion     int
	password       string
	salt           string
	challenge      string
	skipIdentified bool
	dropIdentified bool
	scenes         []map[string]any
	current        string
	ignoreSets     int
	requests       []Request
	identifies     []Identify
	hook           func(req Request, rep *fakeReply)
	conns          []net.Conn
}

func newFakeOBS(t *testing.T) *fakeOBS {
	t.Helper()
	f := &fakeOBS{
		t:          t,
		rpcVersion: 1,
		salt:       "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI=",
		challenge:  "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY=",
		current:    "Intro",
		scenes: []map[string]any{
			{"sceneName": " Board 2 ", "sceneIndex": 1},
			{"sceneName": "Intro", "sceneIndex": 2},
			{"sceneName": "Board 1", "sceneIndex": 0},
		},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.closeAll)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOBS) url() string { return "ws" + strings.TrimPrefix(f.srv.URL, "http") }

func (f *fakeOBS) set(fn func(f *fakeOBS)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeOBS) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeOBS) requestsOf(requestType string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Request
	for _, r := range f.requests {
		if r.RequestType == requestType {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeOBS) currentScene() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

type fakeConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *fakeConn) send(op OpCode, d any) {
	payload, err := encodeMessage(op, d)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = wsutil.WriteServerText(c.conn, payload)
}

func (f *fakeOBS) serve(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	fc := &fakeConn{conn: conn}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	hello := Hello{ObsWebSocketVersion: "5.0.0", RPCVersion: f.rpcVersion}
	if f.password != "" {
		hello.Authentication = &AuthChallenge{Challenge: f.challenge, Salt: f.salt}
	}
	f.mu.Unlock()
	fc.send(OpHello, hello)

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var env envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		switch env.Op {
		case OpIdentify:
			var id Identify
			_ = json.Unmarshal(env.D, &id)
			f.mu.Lock()
			f.identifies = append(f.identifies, id)
			want := ""
			if f.password != "" {
				want = AuthResponse(f.password, &AuthChallenge{Challenge: f.challenge, Salt: f.salt})
			}
			skip := f.skipIdentified
			drop := f.dropIdentified
			f.mu.Unlock()
			if want != "" && id.Authentication != want {
				fc.mu.Lock()
				_ = ws.WriteFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(4009, "Authentication failed.")))
				fc.mu.Unlock()
				_ = conn.Close()
				return
			}
			if !skip {
				fc.send(OpIdentified, Identified{NegotiatedRPCVersion: 1})
			}
			if drop {
				_ = conn.Close()
				return
			}
		case OpRequest:
			var req Request
			if json.Unmarshal(env.D, &req) == nil {
				f.reply(fc, req)
			}
		}
	}
}

func (f *fakeOBS) reply(fc *fakeConn, req Request) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	rep := f.defaultReplyLocked(req)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(req, &rep)
	}
	if rep.drop {
		return
	}

	send := func() {
		resp := map[string]any{"requestType": req.RequestType, "requestId": req.RequestID}
		if rep.obsStatus {
			resp["requestStatus"] = map[string]any{"result": rep.status != "error", "code": 600, "comment": rep.errMsg}
		} else {
			resp["status"] = rep.status
			if rep.errMsg != "" {
				resp["error"] = rep.errMsg
			}
		}
		if rep.data != nil {
			resp["responseData"] = rep.data
		}
		fc.send(OpRequestResponse, resp)
	}
	if rep.delay > 0 {
		time.AfterFunc(rep.delay, send)
		return
	}
	send()
}

func (f *fakeOBS) defaultReplyLocked(req Request) fakeReply {
	rep := fakeReply{status: "ok"}
	switch req.RequestType {
	case RequestGetSceneList:
		rep.data = map[string]any{"scenes": f.scenes, "currentProgramSceneName": f.current}
	case RequestGetCurrentProgramScene:
		rep.data = map[string]any{"currentProgramSceneName": f.current}
	case RequestSetCurrentProgramScene:
		name := ""
		if m, ok := req.RequestData.(map[string]any); ok {
			name, _ = m["sceneName"].(string)
		}
		if f.ignoreSets > 0 {
			f.ignoreSets--
		} else {
			f.current = name
		}
	}
	return rep
}
