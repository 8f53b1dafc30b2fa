// Package docstore is the gateway to the remote document store: top-level
// collections of documents, each document able to own sub-collections.
//
// Paths alternate collection and document segments separated by "/", so
// "movies" is a collection, "movies/Inception" a document and
// "movies/Inception/ratings" one of its sub-collections.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Standard errors returned by stores
var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Collection names of the diary schema
const (
	Users    = "users"
	Series   = "series"
	Movies   = "movies"
	Ratings  = "ratings"
	Comments = "comments"
)

// Document is a single stored document. ID is the last path segment.
type Document struct {
	ID   string
	Data map[string]any
}

// Store is the remote document store used by hydration and mutations
type Store interface {
	// List returns every document of a collection in arrival order
	List(ctx context.Context, collection string) ([]Document, error)
	// Get returns a single document or ErrNotFound
	Get(ctx context.Context, doc string) (*Document, error)
	// Where returns the documents of a collection whose field equals value
	Where(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Set creates or overwrites a document; with merge only the given fields change
	Set(ctx context.Context, doc string, data map[string]any, merge bool) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, doc string) error
}

// Join builds a path from segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split separates a document path into its collection path and id
func Split(doc string) (collection, id string, err error) {
	segments := strings.Split(doc, "/")
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, doc)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, doc)
		}
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

func validCollection(collection string) error {
	segments := strings.Split(collection, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, collection)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, collection)
		}
	}
	return nil
}

// Write is one pending remote write
type Write struct {
	Path   string         `json:"path"`
	Data   map[string]any `json:"data,omitempty"`
	Merge  bool           `json:"merge,omitempty"`
	Delete bool           `json:"delete,omitempty"`
}

// SetWrite creates a write that overwrites a document
func SetWrite(path string, data map[string]any) Write {
	return Write{Path: path, Data: data}
}

// MergeWrite creates a write that updates only the given fields
func MergeWrite(path string, data map[string]any) Write {
	return Write{Path: path, Data: data, Merge: true}
}

// DeleteWrite creates a write that removes a document
func DeleteWrite(path string) Write {
	return Write{Path: path, Delete: true}
}

// Apply runs every write in order. Writes are independent: a failure does
// not stop the remaining writes, and all failures are returned joined. A
// positive timeout bounds each write separately.
func Apply(ctx context.Context, store Store, writes []Write, timeout time.Duration) error {
	var errs []error
	for _, w := range writes {
		if err := applyOne(ctx, store, w, timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", w.Path, err))
		}
	}
	return errors.Join(errs...)
}

func applyOne(ctx context.Context, store Store, w Write, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if w.Delete {
		return store.Delete(ctx, w.Path)
	}
	return store.Set(ctx, w.Path, w.Data, w.Merge)
}
