package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	collection, id, err := Split("movies/Inception/ratings/alice")
	require.NoError(t, err)
	assert.Equal(t, "movies/Inception/ratings", collection)
	assert.Equal(t, "alice", id)

	_, _, err = Split("movies")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = Split("movies//ratings/alice")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryListKeepsArrivalOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "series/Dark", map[string]any{"imdb": 8.7}, false))
	require.NoError(t, store.Set(ctx, "series/Lost", map[string]any{"imdb": 8.3}, false))
	require.NoError(t, store.Set(ctx, "series/Dark", map[string]any{"imdb": 8.8}, false))

	docs, err := store.List(ctx, "series")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Dark", docs[0].ID)
	assert.Equal(t, 8.8, docs[0].Data["imdb"])
	assert.Equal(t, "Lost", docs[1].ID)

	empty, err := store.List(ctx, "movies")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = store.List(ctx, "movies/Inception")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemorySetMerge(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "users/alice", map[string]any{
		"email":       "alice@example.com",
		"watchLaters": []string{"Dark"},
	}, false))
	require.NoError(t, store.Set(ctx, "users/alice", map[string]any{
		"watchLaters": []string{},
	}, true))

	doc, err := store.Get(ctx, "users/alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", doc.Data["email"])
	assert.Equal(t, []string{}, doc.Data["watchLaters"])

	require.NoError(t, store.Set(ctx, "users/alice", map[string]any{"watchLaters": []string{"Lost"}}, false))
	doc, err = store.Get(ctx, "users/alice")
	require.NoError(t, err)
	_, hasEmail := doc.Data["email"]
	assert.False(t, hasEmail)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	data := map[string]any{"watchLaters": []string{"Dark"}}
	require.NoError(t, store.Set(ctx, "users/alice", data, false))
	data["watchLaters"].([]string)[0] = "Lost"

	doc, err := store.Get(ctx, "users/alice")
	require.NoError(t, err)
	doc.Data["email"] = "x"

	again, err := store.Get(ctx, "users/alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dark"}, again.Data["watchLaters"])
	assert.NotContains(t, again.Data, "email")
}

func TestMemoryGetAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Get(ctx, "movies/Inception")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "movies/Inception/ratings/alice", map[string]any{"score": 4.5}, false))
	require.NoError(t, store.Delete(ctx, "movies/Inception/ratings/alice"))
	require.NoError(t, store.Delete(ctx, "movies/Inception/ratings/alice"))

	_, err = store.Get(ctx, "movies/Inception/ratings/alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWhere(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Set(ctx, "users/alice", map[string]any{"email": "alice@example.com"}, false))
	require.NoError(t, store.Set(ctx, "users/bob", map[string]any{"email": "bob@example.com"}, false))
	require.NoError(t, store.Set(ctx, "users/alice2", map[string]any{"email": "alice@example.com"}, false))

	docs, err := store.Where(ctx, "users", "email", "alice@example.com")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "alice", docs[0].ID)
	assert.Equal(t, "alice2", docs[1].ID)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().List(ctx, "series")
	assert.ErrorIs(t, err, context.Canceled)
}

type failingStore struct {
	*Memory
	failPath string
}

func (f *failingStore) Set(ctx context.Context, doc string, data map[string]any, merge bool) error {
	if doc == f.failPath {
		return errors.New("unavailable")
	}
	return f.Memory.Set(ctx, doc, data, merge)
}

func TestApplyContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Memory: NewMemory(), failPath: "movies/Inception/ratings/alice"}

	err := Apply(ctx, store, []Write{
		SetWrite("movies/Inception/ratings/alice", map[string]any{"score": 4.5}),
		SetWrite("users/alice/ratings/Inception", map[string]any{"score": 4.5}),
	}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "movies/Inception/ratings/alice")

	doc, err := store.Get(ctx, "users/alice/ratings/Inception")
	require.NoError(t, err)
	assert.Equal(t, 4.5, doc.Data["score"])
}

func TestFieldReaders(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data := map[string]any{
		"name":     "Dark",
		"imdb":     8.7,
		"seasons":  float64(3),
		"runtime":  148,
		"half":     2.5,
		"created":  now.Format(time.RFC3339Nano),
		"native":   now,
		"actors":   []any{"Louis Hofmann", 3, "Lisa Vicari"},
		"typed":    []string{"a"},
		"notatime": "yesterday",
	}

	s, ok := String(data, "name")
	assert.True(t, ok)
	assert.Equal(t, "Dark", s)

	_, ok = String(data, "imdb")
	assert.False(t, ok)

	assert.Equal(t, 8.7, FloatOr(data, "imdb", 0))
	assert.Equal(t, 148.0, FloatOr(data, "runtime", 0))
	assert.Equal(t, 3, IntOr(data, "seasons", 0))
	assert.Equal(t, 0, IntOr(data, "half", 0))
	assert.Equal(t, 7, IntOr(data, "missing", 7))

	ts, ok := Time(data, "created")
	assert.True(t, ok)
	assert.True(t, now.Equal(ts))
	ts, ok = Time(data, "native")
	assert.True(t, ok)
	assert.True(t, now.Equal(ts))
	_, ok = Time(data, "notatime")
	assert.False(t, ok)

	assert.Equal(t, []string{"Louis Hofmann", "Lisa Vicari"}, StringsOr(data, "actors"))
	assert.Equal(t, []string{"a"}, StringsOr(data, "typed"))
	assert.Equal(t, []string{}, StringsOr(data, "missing"))
}
