package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MemoryProvider keeps bcrypt password hashes in process. It backs local
// development and tests when no external provider is configured.
type MemoryProvider struct {
	mu     sync.RWMutex
	hashes map[string][]byte
	cost   int
}

// NewMemoryProvider creates an empty provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{hashes: make(map[string][]byte), cost: bcrypt.DefaultCost}
}

// NewMemoryProviderWithCost creates a provider with a custom bcrypt cost
func NewMemoryProviderWithCost(cost int) *MemoryProvider {
	p := NewMemoryProvider()
	p.cost = cost
	return p
}

// SignIn checks the password against the stored hash
func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	hash, ok := p.hashes[normalizeEmail(email)]
	p.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}

// CreateUser stores a hash of the password for a new email
func (p *MemoryProvider) CreateUser(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return ErrWeakPassword
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	key := normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.hashes[key]; exists {
		return ErrEmailInUse
	}
	p.hashes[key] = hash
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
