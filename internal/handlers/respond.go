// Package handlers exposes the diary services as a JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	apierrors "github.com/liamwears/reeldiary/internal/errors"
	"github.com/liamwears/reeldiary/internal/middleware"
	"github.com/liamwears/reeldiary/internal/services"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierrors.New(apierrors.BadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// writeError maps service errors onto the API error envelope. Anything
// unrecognised is logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	e := toAPIError(err)
	if e.Code == apierrors.Internal || e.Code == apierrors.RemoteFailure || e.Code == apierrors.RemoteTimeout {
		logger.Printf("Failed to handle %s %s: %v", r.Method, r.URL.Path, err)
	}
	if id := middleware.CorrelationID(r.Context()); id != "" {
		e.CorrelationID = id
	}
	apierrors.Write(w, e)
}

func toAPIError(err error) *apierrors.Error {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return apierrors.New(apierrors.Validation, verr.Message).WithField(verr.Field)
	}

	switch {
	case errors.Is(err, services.ErrInvalidScore):
		return apierrors.New(apierrors.Validation, err.Error()).WithField("score")
	case errors.Is(err, services.ErrEmptyComment):
		return apierrors.New(apierrors.Validation, err.Error()).WithField("text")
	case errors.Is(err, services.ErrNotAuthenticated):
		return apierrors.New(apierrors.Unauthenticated, "sign in required")
	case errors.Is(err, services.ErrEntityNotFound), errors.Is(err, services.ErrUserNotFound):
		return apierrors.New(apierrors.NotFound, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		return apierrors.New(apierrors.UsernameTaken, "username is already taken").WithField("username")
	case errors.Is(err, services.ErrEmailInUse):
		return apierrors.New(apierrors.EmailInUse, "email address is already in use").WithField("email")
	case errors.Is(err, services.ErrWrongPassword):
		return apierrors.New(apierrors.WrongPassword, "wrong password").WithField("password")
	case errors.Is(err, services.ErrEmailNotRegistered):
		return apierrors.New(apierrors.EmailNotFound, "email address is not registered").WithField("email")
	case errors.Is(err, services.ErrUnsupportedSort):
		return apierrors.New(apierrors.UnsupportedSort, err.Error()).WithField("sort")
	case errors.Is(err, services.ErrInvalidKind), errors.Is(err, services.ErrInvalidPosterURL),
		errors.Is(err, services.ErrPosterTooLarge), errors.Is(err, services.ErrUnusableName):
		return apierrors.New(apierrors.BadRequest, err.Error())
	case errors.Is(err, services.ErrRemoteTimeout):
		return apierrors.New(apierrors.RemoteTimeout, "remote store timed out")
	case errors.Is(err, services.ErrRemoteFailure):
		return apierrors.New(apierrors.RemoteFailure, "remote call failed")
	default:
		return apierrors.New(apierrors.Internal, "internal error")
	}
}
