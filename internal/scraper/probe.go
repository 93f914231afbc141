package scraper

import (
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/chessobs/internal/board"
)

// probeJS reads the active board, side to move, board count and round URL
// from a Lichess broadcast page. It returns a JSON string.
const probeJS = `(() => {
  let boardNumber = null;
  const current = document.querySelector('.relay-game--current');
  if (current && current.getAttribute('data-n')) {
    boardNumber = parseInt(current.getAttribute('data-n'), 10);
  }

  let broadcastUrl = null;
  const href = window.location.href;
  if (href.includes('/broadcast/')) {
    const parts = href.split('/');
    parts.pop();
    broadcastUrl = parts.join('/');
  }

  let totalBoards = 0;
  const games = document.querySelector('.relay-games.relay-games__eval');
  if (games) {
    totalBoards = games.querySelectorAll('.relay-game').length;
  }

  let turn = null;
  if (document.querySelector('.analyse__clock.top.active')) {
    turn = 'black';
  } else if (document.querySelector('.analyse__clock.bottom.active')) {
    turn = 'white';
  }
  if (!turn) {
    const b = document.querySelector('.analyse_board');
    if (b && b.classList.contains('turn-white')) turn = 'white';
    if (b && b.classList.contains('turn-black')) turn = 'black';
  }

  return JSON.stringify({ boardNumber, turn, totalBoards, broadcastUrl });
})()`

// decodeProbe parses the probe result. ok is false when the page shows no
// active board or no side to move; such readings are not forwarded.
func decodeProbe(raw string) (info board.Info, ok bool, err error) {
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return board.Info{}, false, fmt.Errorf("decode probe result: %w", err)
	}
	return info, info.Valid(), nil
}
