package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Store persists a Mapping. Loading from an empty store yields an empty Mapping.
type Store interface {
	Load(ctx context.Context) (Mapping, error)
	Save(ctx context.Context, m Mapping) error
	Reset(ctx context.Context) error
}

// FileStore keeps the mapping in a YAML file.
type FileStore struct {
	path string
}

type fileDoc struct {
	Boards map[int]BoardScenes `yaml:"boards"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (Mapping, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Mapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mapping file: %w", err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping file %s: %w", s.path, err)
	}
	m := Mapping{}
	for n, scenes := range doc.Boards {
		m.Set(n, scenes)
	}
	return m, nil
}

// Save writes through a temp file so readers never see a partial mapping.
func (s *FileStore) Save(ctx context.Context, m Mapping) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mapping file: %w", err)
	}
	data, err := yaml.Marshal(fileDoc{Boards: m})
	if err != nil {
		return fmt.Errorf("mapping file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("mapping file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("mapping file: %w", err)
	}
	return nil
}

func (s *FileStore) Reset(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("mapping file: %w", err)
	}
	return nil
}

const DefaultRedisKey = "chessobs:scene_mapping"

// RedisStore keeps the mapping as one JSON value so several directors can
// share it.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore parses redisURL and verifies the server answers.
func NewRedisStore(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (Mapping, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return Mapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mapping: %w", err)
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

func (s *RedisStore) Save(ctx context.Context, m Mapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to reset mapping: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
