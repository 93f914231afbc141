// Package mapping assigns OBS scene names to each board and side to move.
package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgnsrekt/chessobs/internal/board"
)

var ErrNothingToCopy = errors.New("nothing to copy")

// BoardScenes holds the scene shown while each side is to move.
type BoardScenes struct {
	White string `json:"white" yaml:"white"`
	Black string `json:"black" yaml:"black"`
}

func (b BoardScenes) Empty() bool { return b.White == "" && b.Black == "" }

// Mapping is keyed by 1-based board number.
type Mapping map[int]BoardScenes

// SceneFor returns the scene for board and turn, or "" when unmapped.
func (m Mapping) SceneFor(boardNumber int, turn board.Turn) string {
	scenes, ok := m[boardNumber]
	if !ok {
		return ""
	}
	switch turn {
	case board.TurnWhite:
		return scenes.White
	case board.TurnBlack:
		return scenes.Black
	default:
		return ""
	}
}

// Set stores trimmed scenes for boardNumber; an empty pair removes the board.
func (m Mapping) Set(boardNumber int, scenes BoardScenes) {
	scenes.White = strings.TrimSpace(scenes.White)
	scenes.Black = strings.TrimSpace(scenes.Black)
	if scenes.Empty() {
		delete(m, boardNumber)
		return
	}
	m[boardNumber] = scenes
}

// Merge applies the non-empty cells of other on top of m. A side left empty
// in other keeps its current scene.
func (m Mapping) Merge(other Mapping) {
	for n, in := range other {
		cur := m[n]
		if w := strings.TrimSpace(in.White); w != "" {
			cur.White = w
		}
		if b := strings.TrimSpace(in.Black); b != "" {
			cur.Black = b
		}
		m.Set(n, cur)
	}
}

// Copy mirrors one side onto the other for boardNumber. White wins when it is
// set; otherwise black is copied to white.
func (m Mapping) Copy(boardNumber int) (BoardScenes, error) {
	scenes := m[boardNumber]
	switch {
	case scenes.White != "":
		scenes.Black = scenes.White
	case scenes.Black != "":
		scenes.White = scenes.Black
	default:
		return scenes, fmt.Errorf("board %d: %w", boardNumber, ErrNothingToCopy)
	}
	m[boardNumber] = scenes
	return scenes, nil
}

// Boards returns the mapped board numbers in ascending order.
func (m Mapping) Boards() []int {
	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

const (
	exportHeader = "Board | White Scene | Black Scene"
	exportRule   = "------|-------------|------------"
)

// Export renders m as the pipe table operators edit by hand.
func Export(m Mapping) string {
	var b strings.Builder
	b.WriteString(exportHeader + "\n")
	b.WriteString(exportRule + "\n")
	for _, n := range m.Boards() {
		s := m[n]
		fmt.Fprintf(&b, "%d | %s | %s\n", n, dash(s.White), dash(s.Black))
	}
	return b.String()
}

// Import parses the Export format. Lines before the rule are skipped; when
// no rule is present every line is treated as data.
func Import(text string) (Mapping, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	start := 0
	for i, line := range lines {
		if strings.Contains(line, "------|") {
			start = i + 1
			break
		}
	}

	m := Mapping{}
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("line %d: invalid board number %q", i+1, parts[0])
		}
		m.Set(n, BoardScenes{White: undash(parts[1]), Black: undash(parts[2])})
	}
	return m, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func undash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
