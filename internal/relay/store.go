package relay

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/chessobs/internal/board"
)

const (
	FeedBoard    = "board"
	FeedPresence = "presence"
)

// Store keeps the latest board info and presence readings in memory.
type Store struct {
	broker *Broker

	mu        sync.RWMutex
	info      board.Info
	updatedAt time.Time
	presence  map[string]board.Presence
}

func NewStore(broker *Broker) *Store {
	return &Store{broker: broker, presence: make(map[string]board.Presence)}
}

func (s *Store) Board() board.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// SetBoard replaces the board info wholesale.
func (s *Store) SetBoard(info board.Info) {
	s.mu.Lock()
	s.info = info
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.broker.PublishJSON(FeedBoard, info)
}

// Presence returns a copy of the readings keyed by NDI source name.
func (s *Store) Presence() map[string]board.Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]board.Presence, len(s.presence))
	for k, v := range s.presence {
		out[k] = v
	}
	return out
}

func (s *Store) SetPresence(r board.PresenceReport) error {
	name := strings.TrimSpace(r.NDIName)
	if name == "" {
		return errors.New("ndi_name is required")
	}
	p := board.Presence{Index: r.Index, PlayerPresent: r.PlayerPresent}
	s.mu.Lock()
	s.presence[name] = p
	s.mu.Unlock()
	s.broker.PublishJSON(FeedPresence, r)
	return nil
}
