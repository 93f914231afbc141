package obsws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MatchKind records which pass resolved a requested scene name.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchCaseInsensitive
	MatchSubstring
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchCaseInsensitive:
		return "case_insensitive"
	case MatchSubstring:
		return "substring"
	default:
		return "none"
	}
}

// MatchScene resolves requested against scenes. Passes run in order and the
// first hit wins: exact, case-insensitive, then a cached name containing the
// requested one. Within a pass the lowest index wins.
func MatchScene(scenes []Scene, requested string) (Scene, MatchKind) {
	name := strings.TrimSpace(requested)
	if name == "" {
		return Scene{}, MatchNone
	}
	for _, s := range scenes {
		if s.Name == name {
			return s, MatchExact
		}
	}
	for _, s := range scenes {
		if strings.EqualFold(s.Name, name) {
			return s, MatchCaseInsensitive
		}
	}
	lower := strings.ToLower(name)
	for _, s := range scenes {
		if strings.Contains(strings.ToLower(s.Name), lower) {
			return s, MatchSubstring
		}
	}
	return Scene{}, MatchNone
}

// SwitchResult describes a confirmed scene switch.
type SwitchResult struct {
	Requested     string    `json:"requested"`
	Scene         string    `json:"scene"`
	Match         MatchKind `json:"-"`
	Attempts      int       `json:"attempts"`
	AlreadyActive bool      `json:"already_active"`
}

// SwitchInProgress reports whether a scene switch currently owns the client.
func (c *Client) SwitchInProgress() bool { return c.switchToken.Load() != 0 }

// SwitchToScene resolves requested against the scene cache and makes it the
// program scene. A nil error means OBS confirmed the target is on air. Only
// one switch runs at a time; concurrent callers are rejected.
func (c *Client) SwitchToScene(ctx context.Context, requested string) (SwitchResult, error) {
	res := SwitchResult{Requested: requested}
	if !c.Connected() {
		return res, newError(CodeNotConnected, "not connected to obs", nil)
	}
	token := c.switchSeq.Add(1)
	if !c.switchToken.CompareAndSwap(0, token) {
		return res, newError(CodeSwitchAlreadyInProgress, "a scene switch is already running", nil)
	}
	defer c.switchToken.CompareAndSwap(token, 0)

	name := strings.TrimSpace(requested)
	target, kind := MatchScene(c.Scenes(), name)
	if kind == MatchNone {
		slog.Warn("obs scene not found", "requested", name, "available", c.SceneNames())
		return res, newError(CodeSceneNotFound, fmt.Sprintf("no scene matches %q", name), nil)
	}
	res.Scene = target.Name
	res.Match = kind
	if kind != MatchExact {
		slog.Debug("obs scene matched", "requested", name, "scene", target.Name, "match", kind.String())
	}

	current, err := c.CurrentScene(ctx)
	if err != nil {
		slog.Warn("obs current scene unknown before switch", "error", err)
	} else if strings.TrimSpace(current) == target.Name {
		res.AlreadyActive = true
		return res, nil
	}

	const maxAttempts = 2
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		if _, err := c.SetScene(ctx, target.Name); err != nil {
			return res, err
		}

		select {
		case <-time.After(c.opts.SettleDelay):
		case <-ctx.Done():
			return res, ctx.Err()
		}

		current, err = c.CurrentScene(ctx)
		if err == nil && strings.TrimSpace(current) == target.Name {
			slog.Info("obs scene switched", "scene", target.Name, "attempts", attempt)
			return res, nil
		}
		slog.Warn("obs scene switch not confirmed", "scene", target.Name, "current", current, "attempt", attempt, "error", err)
	}
	return res, newError(CodeSwitchVerificationFailed,
		fmt.Sprintf("program scene is %q after %d attempts, want %q", current, maxAttempts, target.Name), nil)
}

// CurrentScene returns the name of the program scene.
func (c *Client) CurrentScene(ctx context.Context) (string, error) {
	resp, err := c.Send(ctx, RequestGetCurrentProgramScene, nil)
	if err != nil {
		return "", err
	}
	var data struct {
		CurrentProgramSceneName *string `json:"currentProgramSceneName"`
	}
	if len(resp.Data) > 0 {
		err = json.Unmarshal(resp.Data, &data)
	}
	if err != nil || data.CurrentProgramSceneName == nil {
		return "", newError(CodeInvalidResponse, "current scene response has no currentProgramSceneName", err)
	}
	return *data.CurrentProgramSceneName, nil
}

// SetScene asks OBS to put name on air without matching or verification.
func (c *Client) SetScene(ctx context.Context, name string) (Response, error) {
	return c.Send(ctx, RequestSetCurrentProgramScene, map[string]string{"sceneName": name})
}
