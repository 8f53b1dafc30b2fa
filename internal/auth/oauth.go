package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// OAuthConfig describes an identity provider that supports the OAuth2
// resource owner password grant plus a JSON signup endpoint
type OAuthConfig struct {
	TokenURL     string
	SignupURL    string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// OAuthProvider authenticates against a remote identity provider
type OAuthProvider struct {
	config    *oauth2.Config
	signupURL string
	client    *http.Client
}

// NewOAuthProvider creates a provider for the given endpoints
func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		signupURL: cfg.SignupURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// SignIn exchanges the credentials for a token. The token itself is not
// kept; sessions are tracked by the server.
func (p *OAuthProvider) SignIn(ctx context.Context, email, password string) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	_, err := p.config.PasswordCredentialsToken(ctx, email, password)
	if err == nil {
		return nil
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return ErrInvalidCredentials
		}
	}
	return fmt.Errorf("failed to sign in: %w", err)
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUser registers a new account with the provider
func (p *OAuthProvider) CreateUser(ctx context.Context, email, password string) error {
	if p.signupURL == "" {
		return fmt.Errorf("failed to create user: no signup URL configured")
	}
	body, err := json.Marshal(signupRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("failed to encode signup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.signupURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute signup request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrEmailInUse
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrWeakPassword
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("signup failed: status %d, body: %s", resp.StatusCode, string(msg))
	}
	return nil
}
