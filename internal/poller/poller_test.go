package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/chessobs/internal/board"
)

type recorder struct {
	mu      sync.Mutex
	changes []bool
	updates []board.Info
}

func (r *recorder) change(v bool) {
	r.mu.Lock()
	r.changes = append(r.changes, v)
	r.mu.Unlock()
}

func (r *recorder) update(v board.Info) {
	r.mu.Lock()
	r.updates = append(r.updates, v)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]bool, []board.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.changes...), append([]board.Info(nil), r.updates...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollerDeliversUpdatesAndTransitions(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" && failing.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/status" {
			_, _ = w.Write([]byte(`{"boardNumber":"3","turn":"white","totalBoards":6,"broadcastUrl":""}`))
			return
		}
		_, _ = w.Write([]byte("Server is running!"))
	}))
	defer srv.Close()

	rec := &recorder{}
	p := New[board.Info]("status", srv.URL, "/status", 10*time.Millisecond, nil)
	p.OnConnectionChanged(rec.change)
	p.OnUpdate(rec.update)

	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer p.Stop()

	waitFor(t, func() bool { _, u := rec.snapshot(); return len(u) >= 2 })
	_, updates := rec.snapshot()
	if updates[0].BoardNumber != 3 || updates[0].Turn != board.TurnWhite {
		t.Fatalf("update = %+v; want board 3 white", updates[0])
	}

	failing.Store(true)
	waitFor(t, func() bool { return !p.Connected() })
	failing.Store(false)
	waitFor(t, p.Connected)

	p.Stop()
	changes, _ := rec.snapshot()
	want := []bool{true, false, true, false}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v; want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("changes = %v; want %v", changes, want)
		}
	}
}

func TestPollerConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New[map[string]board.Presence]("presence", srv.URL, "/presence", 10*time.Millisecond, nil)
	if err := p.Connect(context.Background()); err == nil {
		t.Fatalf("Connect() = nil; want error")
	}
	if p.Connected() {
		t.Fatalf("Connected() = true; want false")
	}
}
