package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "config", "scene_mapping.yaml"))

	m, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)

	want := Mapping{1: {White: "Board 1", Black: "Board 1 Black"}, 3: {Black: "Cam 3"}}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Reset(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boards: [not, a, map"), 0o644))
	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("CHESSOBS_TEST_REDIS")
	if url == "" {
		t.Skip("CHESSOBS_TEST_REDIS not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url, "chessobs:test:"+t.Name())
	require.NoError(t, err)
	defer s.Close()
	defer func() { _ = s.Reset(ctx) }()

	want := Mapping{2: {White: "W", Black: "B"}}
	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Reset(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
