package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamwears/reeldiary/internal/config"
	"github.com/liamwears/reeldiary/internal/models"
)

func TestWriteTimeoutCoversWaitedMutations(t *testing.T) {
	assert.Equal(t, 15*time.Second, writeTimeout(time.Second))
	assert.Equal(t, 35*time.Second, writeTimeout(10*time.Second))
	assert.Greater(t, writeTimeout(10*time.Second), maxWritesPerMutation*10*time.Second)
}

func TestParseImport(t *testing.T) {
	postgres := &config.Config{
		Store: config.StoreConfig{Backend: config.BackendPostgres, DatabaseURL: "postgres://localhost/reeldiary"},
		TMDB:  config.TMDBConfig{APIKey: "key"},
	}

	kind, id, err := parseImport(postgres, []string{"movie", "27205"})
	require.NoError(t, err)
	assert.Equal(t, models.KindMovies, kind)
	assert.Equal(t, 27205, id)

	kind, _, err = parseImport(postgres, []string{"tv", "70523"})
	require.NoError(t, err)
	assert.Equal(t, models.KindSeries, kind)

	memory := *postgres
	memory.Store = config.StoreConfig{Backend: config.BackendMemory}
	_, _, err = parseImport(&memory, []string{"movie", "27205"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND=postgres")

	noKey := *postgres
	noKey.TMDB = config.TMDBConfig{}
	_, _, err = parseImport(&noKey, []string{"movie", "27205"})
	assert.Error(t, err)

	for _, args := range [][]string{{"movie"}, {"game", "1"}, {"movie", "abc"}, {"movie", "-3"}} {
		_, _, err := parseImport(postgres, args)
		assert.Error(t, err, args)
	}
}

func TestRequirePostgres(t *testing.T) {
	assert.Error(t, requirePostgres(&config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}}, "migrate"))
	assert.NoError(t, requirePostgres(&config.Config{Store: config.StoreConfig{Backend: config.BackendPostgres}}, "migrate"))
}
