package middleware

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/liamwears/reeldiary/internal/errors"
	"github.com/liamwears/reeldiary/internal/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserContextKey is the key for storing user in context
	UserContextKey ContextKey = "user"
	// UserIDContextKey is the key for storing user ID in context
	UserIDContextKey ContextKey = "userID"
)

// Sessions resolves session ids to user ids
type Sessions interface {
	Get(ctx context.Context, sessionID string) (string, error)
}

// UserLoader restores the in-memory user for a session
type UserLoader interface {
	Resume(ctx context.Context, userID string) (*models.User, error)
}

// AuthMiddleware handles authentication for protected routes
type AuthMiddleware struct {
	sessions     Sessions
	users        UserLoader
	cookieName   string
	ttl          time.Duration
	isProduction bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions Sessions, users UserLoader, cookieName string, ttl time.Duration, isProduction bool) *AuthMiddleware {
	if cookieName == "" {
		cookieName = "session"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthMiddleware{
		sessions:     sessions,
		users:        users,
		cookieName:   cookieName,
		ttl:          ttl,
		isProduction: isProduction,
	}
}

// RequireAuthAPI ensures the user is authenticated for API requests
func (m *AuthMiddleware) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := m.SessionID(r)
		if !ok {
			writeError(w, r, apierrors.New(apierrors.Unauthenticated, "sign in required"))
			return
		}

		userID, err := m.sessions.Get(r.Context(), sessionID)
		if err != nil {
			m.ClearSessionCookie(w)
			writeError(w, r, apierrors.New(apierrors.Unauthenticated, "session expired"))
			return
		}

		user, err := m.users.Resume(r.Context(), userID)
		if err != nil {
			writeError(w, r, apierrors.New(apierrors.Unauthenticated, "user could not be restored"))
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, UserIDContextKey, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionID returns the session cookie value, if any
func (m *AuthMiddleware) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// GetUserFromContext retrieves the user from request context
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// GetUserIDFromContext retrieves the user ID from request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok && userID != ""
}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// SetSessionCookie sets a session cookie
func (m *AuthMiddleware) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie clears the session cookie
func (m *AuthMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// writeError stamps the request's correlation id on e before writing it
func writeError(w http.ResponseWriter, r *http.Request, e *apierrors.Error) {
	if id := CorrelationID(r.Context()); id != "" {
		e.CorrelationID = id
	}
	apierrors.Write(w, e)
}
