package database

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := migrationFiles(migrationsFS, ".up.sql")
	require.NoError(t, err)
	downs, err := migrationFiles(migrationsFS, ".down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
	for i := range ups {
		assert.Equal(t, migrationVersion(ups[i]), migrationVersion(downs[i]))
	}
	assert.Equal(t, "001", migrationVersion(ups[0]))
}

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_b.up.sql":   {Data: []byte("SELECT 2")},
		"migrations/001_a.up.sql":   {Data: []byte("SELECT 1")},
		"migrations/001_a.down.sql": {Data: []byte("SELECT 1")},
		"migrations/README":         {Data: []byte("notes")},
	}
	files, err := migrationFiles(fsys, ".up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.up.sql", "002_b.up.sql"}, files)
}

func TestSessionStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	sessions := NewSessionStore(client, time.Minute)
	id, err := sessions.GenerateSessionID()
	require.NoError(t, err)

	require.NoError(t, sessions.Set(ctx, id, "alice"))
	userID, err := sessions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	require.NoError(t, sessions.Delete(ctx, id))
	_, err = sessions.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	colors := NewColorCache(client, time.Minute)
	_, ok, err := colors.Get(ctx, "https://example.com/missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, colors.Set(ctx, "https://example.com/p.jpg", "#336699"))
	v, ok, err := colors.Get(ctx, "https://example.com/p.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "#336699", v)
}
