package services

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liamwears/reeldiary/internal/docstore"
)

var testTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// seedStore writes a small catalog: two series, two movies, one of them
// sharing its name with a series, and the user alice with one rating
func seedStore(t *testing.T) *docstore.Memory {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory()
	docs := []struct {
		path string
		data map[string]any
	}{
		{"series/Dark", map[string]any{"id": "tt5753856", "category": "Drama", "director": "Baran bo Odar", "actors": "Louis Hofmann", "imdb": 8.7, "releaseYear": 2017, "lastReleaseYear": 2020, "season": 3}},
		{"series/Fargo", map[string]any{"id": "tt2802850", "category": "Crime", "director": "Noah Hawley", "actors": "Billy Bob Thornton", "imdb": 8.9, "releaseYear": 2014, "lastReleaseYear": 2024, "season": 5}},
		{"movies/Inception", map[string]any{"id": "tt1375666", "category": "Action", "director": "Christopher Nolan", "actors": "Leonardo DiCaprio", "imdb": 8.8, "releaseYear": 2010, "runtime": 148}},
		{"movies/Fargo", map[string]any{"id": "tt0116282", "category": "Crime", "director": "Joel Coen", "actors": "Frances McDormand", "imdb": 8.1, "releaseYear": 1996, "runtime": 98}},
		{"users/alice", map[string]any{"email": "alice@example.com", "watchLaters": []string{"Dark"}, "alreadyWatcheds": []string{}}},
		{"series/Dark/ratings/bob", map[string]any{"score": 4.0, "createdDate": testTime}},
		{"users/alice/ratings/Fargo", map[string]any{"score": 3.5, "createdDate": testTime}},
		{"series/Fargo/ratings/alice", map[string]any{"score": 3.5, "createdDate": testTime}},
		{"movies/Fargo/ratings/alice", map[string]any{"score": 3.5, "createdDate": testTime}},
	}
	for _, d := range docs {
		require.NoError(t, store.Set(ctx, d.path, d.data, false))
	}
	return store
}

// loadedCatalog hydrates a catalog from store with alice signed in
func loadedCatalog(t *testing.T, store docstore.Store) *Catalog {
	t.Helper()
	ctx := context.Background()
	h := NewHydrator(store, HydratorConfig{Timeout: time.Second, Concurrency: 2}, nil, discardLogger())
	series, movies, err := h.Catalog(ctx)
	require.NoError(t, err)
	user, err := h.UserByID(ctx, "alice")
	require.NoError(t, err)

	c := NewCatalog()
	c.Replace(series, movies)
	c.SetUser(user)
	return c
}
