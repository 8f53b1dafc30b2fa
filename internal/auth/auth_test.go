package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMemoryProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProviderWithCost(bcrypt.MinCost)

	require.NoError(t, p.CreateUser(ctx, "Alice@Example.com", "secret1"))
	assert.ErrorIs(t, p.CreateUser(ctx, "alice@example.com", "other12"), ErrEmailInUse)

	assert.NoError(t, p.SignIn(ctx, "alice@example.com", "secret1"))
	assert.ErrorIs(t, p.SignIn(ctx, "alice@example.com", "wrong12"), ErrInvalidCredentials)
	assert.ErrorIs(t, p.SignIn(ctx, "bob@example.com", "secret1"), ErrInvalidCredentials)
}

type fakeIdentityServer struct {
	mu    sync.Mutex
	users map[string]string
}

func (f *fakeIdentityServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		pw, ok := f.users[r.PostForm.Get("username")]
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") != "password" || !ok || pw != r.PostForm.Get("password") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/signup", func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, exists := f.users[req.Email]; exists {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.users[req.Email] = req.Password
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func TestOAuthProvider(t *testing.T) {
	idp := &fakeIdentityServer{users: map[string]string{}}
	srv := httptest.NewServer(idp.handler())
	defer srv.Close()

	p := NewOAuthProvider(OAuthConfig{
		TokenURL:  srv.URL + "/token",
		SignupURL: srv.URL + "/signup",
		ClientID:  "reeldiary",
	})
	ctx := context.Background()

	require.NoError(t, p.CreateUser(ctx, "alice@example.com", "secret1"))
	assert.ErrorIs(t, p.CreateUser(ctx, "alice@example.com", "secret1"), ErrEmailInUse)

	assert.NoError(t, p.SignIn(ctx, "alice@example.com", "secret1"))
	assert.ErrorIs(t, p.SignIn(ctx, "alice@example.com", "nope123"), ErrInvalidCredentials)
}

func TestOAuthProviderUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOAuthProvider(OAuthConfig{TokenURL: srv.URL, SignupURL: srv.URL, ClientID: "reeldiary"})
	err := p.SignIn(context.Background(), "alice@example.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	err = p.CreateUser(context.Background(), "alice@example.com", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
