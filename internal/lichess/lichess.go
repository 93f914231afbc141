// Package lichess fetches broadcast round metadata from the public Lichess API.
package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const DefaultBaseURL = "https://lichess.org"

var ErrInvalidBroadcastURL = errors.New("invalid broadcast url")

// Game is one board of a broadcast round.
type Game struct {
	BoardNumber int    `json:"board_number"`
	ID          string `json:"id"`
	White       string `json:"white"`
	Black       string `json:"black"`
	Status      string `json:"status,omitempty"`
}

// Client caches the games of the last fetched round.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	games []Game
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// APIURL maps a broadcast page URL (/broadcast/{tour}/{round}/{roundId}/...)
// to the round API endpoint.
func (c *Client) APIURL(broadcastURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(broadcastURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBroadcastURL, broadcastURL)
	}
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 4 || parts[0] != "broadcast" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBroadcastURL, broadcastURL)
	}
	return fmt.Sprintf("%s/api/broadcast/%s/%s/%s", c.baseURL, parts[1], parts[2], parts[3]), nil
}

// FetchBroadcastGames loads the round behind broadcastURL and replaces the cache.
func (c *Client) FetchBroadcastGames(ctx context.Context, broadcastURL string) ([]Game, error) {
	apiURL, err := c.APIURL(broadcastURL)
	if err != nil {
		return nil, err
	}
	slog.Info("fetching broadcast games", "api_url", apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch broadcast: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch broadcast: status=%d", resp.StatusCode)
	}

	var payload struct {
		Games *[]struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Players []struct {
				Name string `json:"name"`
			} `json:"players"`
		} `json:"games"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode broadcast: %w", err)
	}
	if payload.Games == nil {
		return nil, errors.New("decode broadcast: missing games array")
	}

	games := make([]Game, 0, len(*payload.Games))
	for i, g := range *payload.Games {
		game := Game{BoardNumber: i + 1, ID: g.ID, Status: g.Status}
		if len(g.Players) > 0 {
			game.White = g.Players[0].Name
		}
		if len(g.Players) > 1 {
			game.Black = g.Players[1].Name
		}
		games = append(games, game)
	}

	c.mu.Lock()
	c.games = games
	c.mu.Unlock()
	slog.Info("broadcast games fetched", "count", len(games))
	return c.Games(), nil
}

func (c *Client) Games() []Game {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Game, len(c.games))
	copy(out, c.games)
	return out
}

func (c *Client) GameByBoard(n int) (Game, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.games {
		if g.BoardNumber == n {
			return g, true
		}
	}
	return Game{}, false
}

func (c *Client) GameByID(id string) (Game, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.games {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}
