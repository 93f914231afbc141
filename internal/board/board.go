// Package board holds the broadcast state shared by the relay, the scraper
// and the director.
package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Turn is the side to move on the active board.
type Turn string

const (
	TurnUnknown Turn = ""
	TurnWhite   Turn = "white"
	TurnBlack   Turn = "black"
)

// ParseTurn normalizes s; anything but white or black is unknown.
func ParseTurn(s string) Turn {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return TurnWhite
	case "black", "b":
		return TurnBlack
	default:
		return TurnUnknown
	}
}

func (t *Turn) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = TurnUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("turn: %w", err)
	}
	*t = ParseTurn(s)
	return nil
}

// Number is a board count that may arrive as a JSON number, a numeric
// string, an empty string or null. Zero means unknown.
type Number int

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("board number %q: %w", s, err)
		}
		*n = Number(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("board number: %w", err)
	}
	*n = Number(int(f))
	return nil
}

// Info is what the page scraper reports about the broadcast.
type Info struct {
	BroadcastURL string `json:"broadcastUrl"`
	BoardNumber  Number `json:"boardNumber"`
	TotalBoards  Number `json:"totalBoards"`
	Turn         Turn   `json:"turn"`
}

// Valid reports whether the info names a board and a side to move.
func (i Info) Valid() bool {
	return i.BoardNumber > 0 && i.Turn != TurnUnknown
}

// Key identifies the board/turn pair a scene was chosen for.
func (i Info) Key() string {
	return fmt.Sprintf("%d-%s", int(i.BoardNumber), i.Turn)
}

// Presence is the latest player-presence reading for one camera source.
type Presence struct {
	Index         Number `json:"index"`
	PlayerPresent bool   `json:"player_present"`
}

// PresenceReport is the body posted by the presence detector.
type PresenceReport struct {
	NDIName       string `json:"ndi_name"`
	Index         Number `json:"index"`
	PlayerPresent bool   `json:"player_present"`
}
