// Package poller polls a relay endpoint for JSON state and reports
// connection transitions.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Poller fetches base+path every interval and hands each decoded value to
// the update callback.
type Poller[T any] struct {
	name     string
	base     string
	path     string
	interval time.Duration
	client   *http.Client

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	onUpdate func(T)
	onChange func(bool)
	onPoll   func(err error)
}

// New creates a poller. A nil client uses http.DefaultClient with a short timeout.
func New[T any](name, base, path string, interval time.Duration, client *http.Client) *Poller[T] {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Poller[T]{
		name:     name,
		base:     strings.TrimRight(base, "/"),
		path:     path,
		interval: interval,
		client:   client,
	}
}

func (p *Poller[T]) OnUpdate(fn func(T))              { p.onUpdate = fn }
func (p *Poller[T]) OnConnectionChanged(fn func(bool)) { p.onChange = fn }

// OnPoll registers a hook called after every poll with its error, if any.
func (p *Poller[T]) OnPoll(fn func(err error)) { p.onPoll = fn }

func (p *Poller[T]) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Connect probes the base URL and starts polling on success.
func (p *Poller[T]) Connect(ctx context.Context) error {
	p.Stop()

	if err := p.probe(ctx); err != nil {
		slog.Warn("relay connect failed", "poller", p.name, "url", p.base, "error", err)
		p.setConnected(false)
		return err
	}
	slog.Info("relay connected", "poller", p.name, "url", p.base+p.path)
	p.setConnected(true)

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.loop(loopCtx, done)
	return nil
}

// Stop halts polling and reports the poller as disconnected.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.setConnected(false)
}

func (p *Poller[T]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller[T]) pollOnce(ctx context.Context) {
	v, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	if p.onPoll != nil {
		p.onPoll(err)
	}
	if err != nil {
		if p.Connected() {
			slog.Warn("relay poll failed", "poller", p.name, "error", err)
		}
		p.setConnected(false)
		return
	}
	p.setConnected(true)
	if p.onUpdate != nil {
		p.onUpdate(v)
	}
}

// setConnected fires the change callback on transitions only.
func (p *Poller[T]) setConnected(v bool) {
	p.mu.Lock()
	changed := p.connected != v
	p.connected = v
	p.mu.Unlock()
	if changed && p.onChange != nil {
		p.onChange(v)
	}
}

func (p *Poller[T]) probe(ctx context.Context) error {
	resp, err := p.get(ctx, p.base)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay probe %s: status=%d", p.base, resp.StatusCode)
	}
	return nil
}

func (p *Poller[T]) fetch(ctx context.Context) (T, error) {
	var v T
	resp, err := p.get(ctx, p.base+p.path)
	if err != nil {
		return v, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return v, fmt.Errorf("relay poll %s: status=%d", p.path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return v, fmt.Errorf("relay poll %s: decode: %w", p.path, err)
	}
	return v, nil
}

func (p *Poller[T]) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return p.client.Do(req)
}
