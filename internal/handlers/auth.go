package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/liamwears/reeldiary/internal/middleware"
	"github.com/liamwears/reeldiary/internal/models"
	"github.com/liamwears/reeldiary/internal/services"
)

// SessionStore creates and discards sessions
type SessionStore interface {
	GenerateSessionID() (string, error)
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, userID string) error
	Delete(ctx context.Context, sessionID string) error
}

// Accounts is the account flow used by the auth handler
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in services.LoginInput) (*models.User, error)
	Logout(userID string)
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	accounts       Accounts
	sessionStore   SessionStore
	authMiddleware *middleware.AuthMiddleware
	logger         *log.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts Accounts, sessionStore SessionStore, authMiddleware *middleware.AuthMiddleware, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:       accounts,
		sessionStore:   sessionStore,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.startSession(w, r, user.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.Login(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.startSession(w, r, user.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout handles POST /api/auth/logout. It always clears the cookie, even
// for an expired session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := h.authMiddleware.SessionID(r); ok {
		if userID, err := h.sessionStore.Get(r.Context(), sessionID); err == nil {
			h.accounts.Logout(userID)
		}
		if err := h.sessionStore.Delete(r.Context(), sessionID); err != nil {
			h.logger.Printf("Failed to delete session: %v", err)
		}
	}
	h.authMiddleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, services.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID string) error {
	sessionID, err := h.sessionStore.GenerateSessionID()
	if err != nil {
		return err
	}
	if err := h.sessionStore.Set(r.Context(), sessionID, userID); err != nil {
		return err
	}
	h.authMiddleware.SetSessionCookie(w, sessionID)
	return nil
}
