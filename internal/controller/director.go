package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/chessobs/internal/board"
	"github.com/dgnsrekt/chessobs/internal/notify"
	"github.com/dgnsrekt/chessobs/internal/obsws"
	"github.com/dgnsrekt/chessobs/internal/telemetry"
)

const switchTimeout = 30 * time.Second

// Outcomes recorded for director switches besides obsws error codes.
const (
	OutcomeConfirmed     = "confirmed"
	OutcomeAlreadyActive = "already_active"
	OutcomeStale         = "stale"
)

// SwitchEvent is published on the switch feed after every director switch.
type SwitchEvent struct {
	ID        string     `json:"id"`
	Board     int        `json:"board"`
	Turn      board.Turn `json:"turn"`
	Requested string     `json:"requested"`
	Scene     string     `json:"scene,omitempty"`
	Match     string     `json:"match,omitempty"`
	Attempts  int        `json:"attempts"`
	Outcome   string     `json:"outcome"`
	Error     string     `json:"error,omitempty"`
}

// State is the director view served by the API.
type State struct {
	Board            board.Info                `json:"board"`
	ActiveKey        string                    `json:"active_key"`
	ActiveScene      string                    `json:"active_scene"`
	OBSConnected     bool                      `json:"obs_connected"`
	SwitchInProgress bool                      `json:"switch_in_progress"`
	Presence         map[string]board.Presence `json:"presence"`
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	presence := make(map[string]board.Presence, len(s.presence))
	for k, v := range s.presence {
		presence[k] = v
	}
	return State{
		Board:            s.current,
		ActiveKey:        s.activeKey,
		ActiveScene:      s.activeScene,
		OBSConnected:     s.obs.Connected(),
		SwitchInProgress: s.obs.SwitchInProgress(),
		Presence:         presence,
	}
}

// HandleBoardUpdate records the latest board state and starts a scene switch
// when the board/turn pair maps to a scene that is not yet confirmed on air.
// It reports whether a switch was started.
func (s *Service) HandleBoardUpdate(_ context.Context, info board.Info) bool {
	s.mu.Lock()
	changed := info != s.current
	s.current = info
	s.mu.Unlock()
	if changed {
		s.publish(FeedBoard, info)
	}

	if !s.obs.Connected() || !info.Valid() {
		return false
	}

	s.mu.Lock()
	if len(s.mapping) == 0 {
		s.mu.Unlock()
		return false
	}
	target := s.mapping.SceneFor(int(info.BoardNumber), info.Turn)
	key := info.Key()
	if target == "" || key == s.activeKey {
		s.mu.Unlock()
		return false
	}
	if _, kind := obsws.MatchScene(s.obs.Scenes(), target); kind == obsws.MatchNone {
		if !s.warned[target] {
			s.warned[target] = true
			slog.Warn("mapped scene does not exist in obs", "scene", target, "board", int(info.BoardNumber), "turn", info.Turn)
		}
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if s.obs.SwitchInProgress() {
		return false
	}

	id := uuid.NewString()
	slog.Info("switching scene", "switch_id", id, "board", int(info.BoardNumber), "turn", info.Turn, "scene", target)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSwitch(id, info, target)
	}()
	return true
}

func (s *Service) runSwitch(id string, snap board.Info, target string) {
	ctx, cancel := context.WithTimeout(s.ctx, switchTimeout)
	defer cancel()

	res, err := s.obs.SwitchToScene(ctx, target)
	evt := SwitchEvent{
		ID:        id,
		Board:     int(snap.BoardNumber),
		Turn:      snap.Turn,
		Requested: target,
		Scene:     res.Scene,
		Attempts:  res.Attempts,
	}
	if res.Match != obsws.MatchNone {
		evt.Match = res.Match.String()
	}

	s.mu.Lock()
	stale := s.current.BoardNumber != snap.BoardNumber || s.current.Turn != snap.Turn
	switch {
	case stale:
		evt.Outcome = OutcomeStale
	case err != nil:
		evt.Outcome = switchOutcome(res, err)
	default:
		evt.Outcome = switchOutcome(res, nil)
		s.activeKey = snap.Key()
		s.activeScene = res.Scene
	}
	now := s.current
	s.mu.Unlock()

	if err != nil {
		evt.Error = err.Error()
	}
	switch {
	case stale:
		slog.Info("board changed during scene switch",
			"switch_id", id, "was", snap.Key(), "now", now.Key(), "error", err)
	case err != nil:
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Warn("scene switch failed", "switch_id", id, "scene", target, "code", obsws.ErrorCode(err), "error", err)
	default:
		slog.Info("scene switched", "switch_id", id, "scene", res.Scene, "match", res.Match.String(), "attempts", res.Attempts)
	}
	telemetry.RecordSwitch(evt.Outcome)
	s.record(FeedSwitch, evt)
}

func switchOutcome(res obsws.SwitchResult, err error) string {
	if err != nil {
		if code := obsws.ErrorCode(err); code != "" {
			return code
		}
		return "error"
	}
	if res.AlreadyActive {
		return OutcomeAlreadyActive
	}
	return OutcomeConfirmed
}

type obsEvent struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Manual    bool   `json:"manual"`
}

// HandleConnectionChanged is registered as the OBS connection callback. It
// must not call back into the client's blocking operations.
func (s *Service) HandleConnectionChanged(connected bool) {
	telemetry.SetOBSConnected(connected)

	s.mu.Lock()
	manual := s.manual
	s.activeKey = ""
	if connected {
		s.manual = false
		s.warned = make(map[string]bool)
	}
	url := s.obsURL
	s.mu.Unlock()

	s.record(FeedOBS, obsEvent{Connected: connected, State: s.obs.State().String(), Manual: manual})
	if connected {
		slog.Info("obs connected", "url", url)
		return
	}
	if manual {
		slog.Info("obs disconnected")
		return
	}
	slog.Warn("obs connection lost", "url", url, "state", s.obs.State())
	if s.notifier.Enabled() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			msg := notify.Message{
				Title:    "OBS connection lost",
				Body:     fmt.Sprintf("Lost connection to OBS at %s", url),
				Priority: "high",
				Tags:     []string{"warning", "obs"},
			}
			if err := s.notifier.Notify(ctx, msg); err != nil {
				slog.Warn("failed to send obs alert", "error", err)
			}
		}()
	}
}

// HandleRelayConnectionChanged tracks the board relay poller state.
func (s *Service) HandleRelayConnectionChanged(connected bool) {
	telemetry.SetRelayConnected(connected)
	if connected {
		slog.Info("relay connected")
	} else {
		slog.Warn("relay connection lost")
	}
}

// HandlePresence stores the latest presence readings.
func (s *Service) HandlePresence(p map[string]board.Presence) {
	s.mu.Lock()
	changed := len(p) != len(s.presence)
	if !changed {
		for k, v := range p {
			if s.presence[k] != v {
				changed = true
				break
			}
		}
	}
	s.presence = make(map[string]board.Presence, len(p))
	for k, v := range p {
		s.presence[k] = v
	}
	s.mu.Unlock()
	if changed {
		s.publish(FeedPresence, p)
	}
}
