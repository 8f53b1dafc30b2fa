package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/liamwears/reeldiary/internal/auth"
	"github.com/liamwears/reeldiary/internal/docstore"
	"github.com/liamwears/reeldiary/internal/models"
)

const minPasswordLength = 6

var (
	emailPattern    = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	allDigits       = regexp.MustCompile(`^\d+$`)
)

// RegisterInput is the registration form
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginInput is the sign-in form
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PendingWrites exposes a user's in-flight background writes
type PendingWrites interface {
	PendingWrites(userID string) <-chan struct{}
}

// AccountService handles registration, sign-in and sign-out, and keeps the
// catalog hydrated for signed-in users
type AccountService struct {
	catalog  *Catalog
	hydrator *Hydrator
	store    docstore.Store
	auth     auth.Provider
	timeout  time.Duration
	logger   *log.Logger
	writes   PendingWrites

	hydrateMu sync.Mutex
}

// NewAccountService creates a new AccountService
func NewAccountService(catalog *Catalog, hydrator *Hydrator, store docstore.Store, provider auth.Provider, timeout time.Duration, logger *log.Logger) *AccountService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AccountService{
		catalog:  catalog,
		hydrator: hydrator,
		store:    store,
		auth:     provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// TrackWrites makes sign-in wait for a user's in-flight writes before the
// user is read back from the store
func (s *AccountService) TrackWrites(w PendingWrites) *AccountService {
	s.writes = w
	return s
}

// ValidateRegister checks the registration form without any remote call
func ValidateRegister(in RegisterInput) error {
	if !emailPattern.MatchString(in.Email) {
		return &ValidationError{Field: "email", Message: "not a valid email address"}
	}
	if !usernamePattern.MatchString(in.Username) || allDigits.MatchString(in.Username) {
		return &ValidationError{Field: "username", Message: "must be 3-20 letters, digits or underscores and not only digits"}
	}
	if len([]rune(in.Password)) < minPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if in.Password != in.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: "passwords do not match"}
	}
	return nil
}

// ValidateLogin checks the sign-in form without any remote call
func ValidateLogin(in LoginInput) error {
	if !emailPattern.MatchString(in.Email) {
		return &ValidationError{Field: "email", Message: "not a valid email address"}
	}
	if len([]rune(in.Password)) < minPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	return nil
}

// Register creates the provider account and an empty user document, then
// signs the new user in
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := ValidateRegister(in); err != nil {
		return nil, err
	}
	userID := strings.ToLower(in.Username)
	email := strings.ToLower(in.Email)

	users, err := s.listUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, doc := range users {
		if strings.ToLower(doc.ID) == userID {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, in.Username)
		}
	}

	if err := s.auth.CreateUser(ctx, in.Email, in.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailInUse):
			return nil, fmt.Errorf("%w: %s", ErrEmailInUse, email)
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, &ValidationError{Field: "password", Message: "rejected by the identity provider"}
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	err = s.call(ctx, "create user document", func(ctx context.Context) error {
		return s.store.Set(ctx, docstore.Join(docstore.Users, userID), map[string]any{"email": email}, false)
	})
	if err != nil {
		s.logger.Printf("Account %s created but user document write failed: %v", email, err)
		return nil, err
	}

	user := models.NewUser(userID, email)
	s.catalog.SetUser(user)
	if err := s.EnsureCatalog(ctx); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// Login signs in with the provider, then hydrates the user and the catalog.
// A rejected sign-in is classified by scanning the registered emails.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := ValidateLogin(in); err != nil {
		return nil, err
	}
	email := strings.ToLower(in.Email)

	if err := s.auth.SignIn(ctx, in.Email, in.Password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, fmt.Errorf("failed to sign in: %w", err)
		}
		return nil, s.classifyFailedLogin(ctx, email)
	}

	user, err := s.hydrator.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user, err = s.install(ctx, user); err != nil {
		return nil, err
	}
	if err := s.EnsureCatalog(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

// Resume restores a user for an existing session
func (s *AccountService) Resume(ctx context.Context, userID string) (*models.User, error) {
	if u, ok := s.catalog.User(userID); ok {
		return u, nil
	}
	user, err := s.hydrator.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user, err = s.install(ctx, user); err != nil {
		return nil, err
	}
	if err := s.EnsureCatalog(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

// install signs in a freshly hydrated user. A user already in memory is
// kept: it may hold writes the store has not seen yet. Otherwise queued
// writes from an earlier session are awaited and the user is read again.
func (s *AccountService) install(ctx context.Context, user *models.User) (*models.User, error) {
	if u, ok := s.catalog.User(user.ID); ok {
		return u, nil
	}
	if s.writes != nil {
		if pending := s.writes.PendingWrites(user.ID); pending != nil {
			select {
			case <-pending:
			case <-ctx.Done():
				return nil, remoteErr("wait for pending writes of "+user.ID, ctx.Err())
			}
			fresh, err := s.hydrator.UserByID(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			user = fresh
		}
	}
	return s.catalog.AddUser(user), nil
}

// Logout discards the user's in-memory aggregate
func (s *AccountService) Logout(userID string) {
	s.catalog.RemoveUser(userID)
}

// EnsureCatalog hydrates the catalog once
func (s *AccountService) EnsureCatalog(ctx context.Context) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	if s.catalog.Loaded() {
		return nil
	}
	series, movies, err := s.hydrator.Catalog(ctx)
	if err != nil {
		return err
	}
	s.catalog.Replace(series, movies)
	s.logger.Printf("Catalog hydrated: %d series, %d movies", len(series), len(movies))
	return nil
}

func (s *AccountService) classifyFailedLogin(ctx context.Context, email string) error {
	users, err := s.listUsers(ctx)
	if err != nil {
		return err
	}
	for _, doc := range users {
		if strings.ToLower(docstore.StringOr(doc.Data, "email", "")) == email {
			return ErrWrongPassword
		}
	}
	return ErrEmailNotRegistered
}

func (s *AccountService) listUsers(ctx context.Context) ([]docstore.Document, error) {
	var docs []docstore.Document
	err := s.call(ctx, "list users", func(ctx context.Context) error {
		var err error
		docs, err = s.store.List(ctx, docstore.Users)
		return err
	})
	return docs, err
}

func (s *AccountService) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return remoteErr(op, fn(ctx))
}
