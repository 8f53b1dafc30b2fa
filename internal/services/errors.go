package services

import (
	"context"
	"errors"
	"fmt"
)

// Standard errors returned by the diary services
var (
	ErrNotAuthenticated   = errors.New("no signed-in user")
	ErrEntityNotFound     = errors.New("no series or movie with that name")
	ErrInvalidScore       = errors.New("score must be greater than 0 and at most 5")
	ErrEmptyComment       = errors.New("comment text is empty")
	ErrRemoteTimeout      = errors.New("remote store timed out")
	ErrRemoteFailure      = errors.New("remote call failed")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailInUse         = errors.New("email address is already in use")
	ErrWrongPassword      = errors.New("wrong password")
	ErrEmailNotRegistered = errors.New("email address is not registered")
	ErrUserNotFound       = errors.New("user document not found")
	ErrUnsupportedSort    = errors.New("sort option not supported for this kind")
	ErrInvalidKind        = errors.New("unknown catalog kind")
	ErrUnusableName       = errors.New("title cannot be used as a catalog name")
)

// ValidationError reports input rejected before any remote call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// remoteErr tags a failed remote call with ErrRemoteTimeout when its
// deadline passed and ErrRemoteFailure otherwise, keeping the original cause
// in the chain
func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrRemoteTimeout, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrRemoteFailure, err)
}
