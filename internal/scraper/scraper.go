// Package scraper reads broadcast board state from a Chromium tab over CDP
// and forwards it to the relay server.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/chessobs/internal/board"
)

var ErrNoMatchingTab = errors.New("no browser tab matches the url filter")

// Options configures a Scraper.
type Options struct {
	CDPURL       string
	TabURLFilter string
	Interval     time.Duration
	RelayURL     string
	HTTPClient   *http.Client
}

// Scraper polls one broadcast tab and posts each reading to the relay.
type Scraper struct {
	opts Options

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	targetID    target.ID
	last        board.Info

	// evaluate is replaced in tests.
	evaluate func(ctx context.Context) (string, error)
}

func New(opts Options) *Scraper {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	opts.RelayURL = strings.TrimRight(opts.RelayURL, "/")
	s := &Scraper{opts: opts}
	s.evaluate = s.evaluateTab
	return s
}

// Attach connects to the browser and binds the first page target whose URL
// contains the filter.
func (s *Scraper) Attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()

	slog.Info("connecting to chromium", "url", s.opts.CDPURL)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), s.opts.CDPURL)

	probeCtx, probeCancel := chromedp.NewContext(allocCtx)
	defer probeCancel()
	stop := context.AfterFunc(ctx, probeCancel)
	defer stop()
	if err := chromedp.Run(probeCtx); err != nil {
		allocCancel()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	targets, err := chromedp.Targets(probeCtx)
	if err != nil {
		allocCancel()
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	var picked *target.Info
	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, s.opts.TabURLFilter) {
			picked = t
			break
		}
	}
	if picked == nil {
		allocCancel()
		return fmt.Errorf("%w: %q", ErrNoMatchingTab, s.opts.TabURLFilter)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(picked.TargetID))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to attach to tab: %w", err)
	}
	s.allocCancel = allocCancel
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	s.targetID = picked.TargetID
	slog.Info("attached to broadcast tab", "target_id", picked.TargetID, "url", picked.URL)
	return nil
}

func (s *Scraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Scraper) detachLocked() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.tabCtx, s.tabCancel, s.allocCancel, s.targetID = nil, nil, nil, ""
}

func (s *Scraper) evaluateTab(ctx context.Context) (string, error) {
	s.mu.Lock()
	tabCtx := s.tabCtx
	s.mu.Unlock()
	if tabCtx == nil {
		return "", errors.New("scraper is not attached to a tab")
	}

	evalCtx, cancel := context.WithTimeout(tabCtx, s.opts.Interval*4)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var raw string
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(probeJS, &raw)); err != nil {
		return "", fmt.Errorf("evaluate board probe: %w", err)
	}
	return raw, nil
}

// Run polls until ctx is done. Probe and post errors are logged and the loop
// continues.
func (s *Scraper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if err := s.Tick(ctx); err != nil {
			slog.Warn("scrape failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one probe and forwards a valid reading to the relay.
func (s *Scraper) Tick(ctx context.Context) error {
	raw, err := s.evaluate(ctx)
	if err != nil {
		return err
	}
	info, ok, err := decodeProbe(raw)
	if err != nil {
		return err
	}
	if !ok {
		slog.Debug("no active board on page", "probe", raw)
		return nil
	}

	s.mu.Lock()
	changed := info != s.last
	s.last = info
	s.mu.Unlock()
	if changed {
		slog.Info("board state", "board", int(info.BoardNumber), "turn", info.Turn, "total", int(info.TotalBoards))
	}
	return s.Post(ctx, info)
}

// Post sends info to the relay's /status endpoint.
func (s *Scraper) Post(ctx context.Context, info board.Info) error {
	body, err := json.Marshal(info)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.RelayURL+"/status", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post board state: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned %s", resp.Status)
	}
	return nil
}

// Last returns the most recent valid reading.
func (s *Scraper) Last() board.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
