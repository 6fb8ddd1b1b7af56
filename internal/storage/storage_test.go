package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/thumbmark/internal/app"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "thumbmark_visitor_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "thumbmark_visitor_id", "v-1"))
	require.NoError(t, s.Set(ctx, "thumbmark_cache", `{"apiResponseExpiry":1}`))
	require.NoError(t, s.Set(ctx, "thumbmark_visitor_id", "v-2"))

	v, ok, err := s.Get(ctx, "thumbmark_visitor_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v-2", v)

	v, ok, err = s.Get(ctx, "thumbmark_cache")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"apiResponseExpiry":1}`, v)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "storage.json")
	s, err := NewFile(path)
	require.NoError(t, err)
	exercise(t, s)

	// A second store over the same file sees the persisted values.
	again, err := NewFile(path)
	require.NoError(t, err)
	v, ok, err := again.Get(context.Background(), "thumbmark_visitor_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v-2", v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFile(path)
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), "k")
	require.Error(t, err)
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()
	t.Cleanup(srv.Shutdown)

	if !srv.ReadyForConnections(10 * time.Second) {
		t.Fatalf("embedded NATS server not ready for connections")
	}
	require.Eventually(t, srv.JetStreamEnabled, 5*time.Second, 50*time.Millisecond)

	return srv
}

func TestNATS(t *testing.T) {
	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, app.StorageConfig{Backend: app.BackendNATS, URL: srv.ClientURL(), Bucket: "thumbmark"})
	require.NoError(t, err)
	defer s.Close()

	exercise(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, app.StorageConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, app.StorageConfig{Backend: app.BackendFile, Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, app.StorageConfig{Backend: "redis"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

type broken struct{}

func (broken) Get(context.Context, string) (string, bool, error) { return "", false, errors.New("disabled") }
func (broken) Set(context.Context, string, string) error         { return errors.New("quota exceeded") }
func (broken) Close() error                                      { return nil }

func TestTolerantSwallowsFailures(t *testing.T) {
	ctx := context.Background()

	tol := NewTolerant(broken{})
	assert.Empty(t, tol.Read(ctx, "k"))
	assert.NotPanics(t, func() { tol.Write(ctx, "k", "v") })

	mem := NewTolerant(NewMemory())
	mem.Write(ctx, "k", "v")
	assert.Equal(t, "v", mem.Read(ctx, "k"))
	assert.Empty(t, mem.Read(ctx, "missing"))
}
