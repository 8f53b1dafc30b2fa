// Package auth verifies email and password credentials against an identity
// provider and creates provider accounts at registration.
package auth

import (
	"context"
	"errors"
)

// Standard provider outcomes
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email address is already in use")
	ErrWeakPassword       = errors.New("password rejected by provider")
)

// Provider is the authentication collaborator used by account flows
type Provider interface {
	SignIn(ctx context.Context, email, password string) error
	CreateUser(ctx context.Context, email, password string) error
}
