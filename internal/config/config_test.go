package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NODE_ENV", "STORE_BACKEND", "DATABASE_URL", "MUTATION_POLICY",
		"REMOTE_TIMEOUT", "HYDRATION_CONCURRENCY", "SESSION_TTL",
		"AUTH_TOKEN_URL", "AUTH_CLIENT_ID", "LOG_MAX_SIZE_MB", "TRACE_STDOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, PolicyFailOpen, cfg.Sync.MutationPolicy)
	assert.False(t, cfg.FailClosed())
	assert.Equal(t, 10*time.Second, cfg.Sync.RemoteTimeout)
	assert.Equal(t, 8, cfg.Sync.HydrationConcurrency)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.False(t, cfg.Logging.TraceStdout)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/reeldiary")
	t.Setenv("MUTATION_POLICY", "fail-closed")
	t.Setenv("REMOTE_TIMEOUT", "250ms")
	t.Setenv("HYDRATION_CONCURRENCY", "2")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("TRACE_STDOUT", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.True(t, cfg.FailClosed())
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.RemoteTimeout)
	assert.Equal(t, 2, cfg.Sync.HydrationConcurrency)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Logging.TraceStdout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_BACKEND": "postgres"},
		"unknown backend":      {"STORE_BACKEND": "sqlite"},
		"unknown policy":       {"MUTATION_POLICY": "retry"},
		"bad timeout":          {"REMOTE_TIMEOUT": "soon"},
		"zero concurrency":     {"HYDRATION_CONCURRENCY": "0"},
		"auth without client":  {"AUTH_TOKEN_URL": "https://auth.example.com/token"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
