package controller

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/chessobs/internal/mapping"
)

func (s *Service) Mapping() mapping.Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Clone()
}

// PutMapping replaces the whole mapping and persists it.
func (s *Service) PutMapping(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	next := mapping.Mapping{}
	for n, scenes := range m {
		if err := requireBoard(n); err != nil {
			return nil, err
		}
		next.Set(n, scenes)
	}
	return s.replace(ctx, next)
}

// SetBoard updates one board's scenes; an empty pair removes the board.
func (s *Service) SetBoard(ctx context.Context, n int, scenes mapping.BoardScenes) (mapping.Mapping, error) {
	if err := requireBoard(n); err != nil {
		return nil, err
	}
	next := s.Mapping()
	next.Set(n, scenes)
	return s.replace(ctx, next)
}

func (s *Service) CopyBoard(ctx context.Context, n int) (mapping.BoardScenes, error) {
	if err := requireBoard(n); err != nil {
		return mapping.BoardScenes{}, err
	}
	next := s.Mapping()
	scenes, err := next.Copy(n)
	if err != nil {
		return mapping.BoardScenes{}, err
	}
	if _, err := s.replace(ctx, next); err != nil {
		return mapping.BoardScenes{}, err
	}
	return scenes, nil
}

func (s *Service) ResetMapping(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.mapping = mapping.Mapping{}
	s.activeKey = ""
	s.mu.Unlock()
	slog.Info("scene mapping reset")
	s.publish(FeedMapping, mapping.Mapping{})
	return nil
}

func (s *Service) ExportMapping() string { return mapping.Export(s.Mapping()) }

// ImportMapping parses an exported table and merges it into the mapping.
func (s *Service) ImportMapping(ctx context.Context, text string) (mapping.Mapping, error) {
	imported, err := mapping.Import(text)
	if err != nil {
		return nil, &ValidationError{Field: "text", Message: err.Error()}
	}
	next := s.Mapping()
	next.Merge(imported)
	return s.replace(ctx, next)
}

func (s *Service) replace(ctx context.Context, next mapping.Mapping) (mapping.Mapping, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.store.Save(ctx, next); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.mapping = next
	// A changed mapping may point the current board at a new scene.
	s.activeKey = ""
	s.mu.Unlock()
	out := next.Clone()
	s.publish(FeedMapping, out)
	return out, nil
}
