package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		)
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM documents WHERE collection LIKE 'test_%'`)
	require.NoError(t, err)

	return NewPostgres(pool)
}

func TestPostgresRoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "test_users/alice", map[string]any{
		"email":       "alice@example.com",
		"watchLaters": []string{"Dark"},
	}, false))
	require.NoError(t, store.Set(ctx, "test_users/alice", map[string]any{
		"alreadyWatcheds": []string{"Lost"},
	}, true))

	doc, err := store.Get(ctx, "test_users/alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", doc.Data["email"])
	assert.Equal(t, []string{"Dark"}, StringsOr(doc.Data, "watchLaters"))
	assert.Equal(t, []string{"Lost"}, StringsOr(doc.Data, "alreadyWatcheds"))

	docs, err := store.Where(ctx, "test_users", "email", "alice@example.com")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "alice", docs[0].ID)

	require.NoError(t, store.Delete(ctx, "test_users/alice"))
	_, err = store.Get(ctx, "test_users/alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresNumbersSurviveRoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "test_movies/Inception/ratings/alice", map[string]any{
		"score":       4.5,
		"createdDate": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}, false))

	docs, err := store.List(ctx, "test_movies/Inception/ratings")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 4.5, FloatOr(docs[0].Data, "score", 0))
	_, ok := Time(docs[0].Data, "createdDate")
	assert.True(t, ok)
}
