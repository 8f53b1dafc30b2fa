package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamwears/reeldiary/internal/metrics"
	"github.com/liamwears/reeldiary/internal/models"
)

type fakeSessions map[string]string

func (f fakeSessions) Get(_ context.Context, sessionID string) (string, error) {
	if id, ok := f[sessionID]; ok {
		return id, nil
	}
	return "", errors.New("session not found")
}

type fakeUsers map[string]*models.User

func (f fakeUsers) Resume(_ context.Context, userID string) (*models.User, error) {
	if u, ok := f[userID]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func newTestAuth() *AuthMiddleware {
	return NewAuthMiddleware(
		fakeSessions{"s-alice": "alice", "s-ghost": "ghost"},
		fakeUsers{"alice": models.NewUser("alice", "alice@example.com")},
		"session", time.Hour, false,
	)
}

func whoAmI(w http.ResponseWriter, r *http.Request) {
	id, _ := GetUserIDFromContext(r.Context())
	user, _ := GetUserFromContext(r.Context())
	_, _ = w.Write([]byte(id + " " + user.Email))
}

func TestRequireAuthAPI(t *testing.T) {
	h := newTestAuth().RequireAuthAPI(http.HandlerFunc(whoAmI))

	tests := []struct {
		name   string
		cookie string
		status int
		body   string
	}{
		{"signed in", "s-alice", http.StatusOK, "alice alice@example.com"},
		{"no cookie", "", http.StatusUnauthorized, ""},
		{"unknown session", "s-nobody", http.StatusUnauthorized, ""},
		{"user gone", "s-ghost", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
				return
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHENTICATED", body.Error.Code)
		})
	}
}

func TestSessionCookies(t *testing.T) {
	m := newTestAuth()
	rec := httptest.NewRecorder()
	m.SetSessionCookie(rec, "s-alice")
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "s-alice", cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)

	rec = httptest.NewRecorder()
	m.ClearSessionCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLoggerCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/series", func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := Logger(logger, metrics.NewMetrics())(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/series", nil)
	req.Header.Set(CorrelationHeader, "corr-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "corr-123", seen)
	assert.Equal(t, "corr-123", rec.Header().Get(CorrelationHeader))
	assert.Contains(t, buf.String(), "GET /api/series 418")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
	assert.NotEqual(t, "corr-123", rec.Header().Get(CorrelationHeader))
}

func TestRateLimiterSkippedOutsideProduction(t *testing.T) {
	rl := NewRateLimiter(nil, 1, time.Minute, false, log.New(&bytes.Buffer{}, "", 0))
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimitIdentifier(t *testing.T) {
	rl := NewRateLimiter(nil, 1, time.Minute, true, log.New(&bytes.Buffer{}, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1:1234", rl.getIdentifier(req))

	req = req.WithContext(WithUserID(req.Context(), "alice"))
	assert.Equal(t, "user:alice", rl.getIdentifier(req))
}
