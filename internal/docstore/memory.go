package docstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-process Store for development and tests. Documents keep
// their arrival order within a collection; overwriting a document keeps its
// original position.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

// List returns copies of every document in the collection
func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Document{ID: id, Data: copyData(c.docs[id])})
	}
	return out, nil
}

// Get returns a copy of a single document
func (m *Memory) Get(ctx context.Context, doc string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	collection, id, err := Split(doc)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: copyData(data)}, nil
}

// Where returns the documents whose field equals value
func (m *Memory) Where(ctx context.Context, collection, field string, value any) ([]Document, error) {
	docs, err := m.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(docs, func(d Document) bool {
		v, ok := d.Data[field]
		return !ok || v != value
	}), nil
}

// Set stores a copy of data at the document path
func (m *Memory) Set(ctx context.Context, doc string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, err := Split(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		c = &memCollection{docs: make(map[string]map[string]any)}
		m.collections[collection] = c
	}
	existing, exists := c.docs[id]
	if !exists {
		c.order = append(c.order, id)
	}
	if merge && exists {
		merged := copyData(existing)
		maps.Copy(merged, copyData(data))
		c.docs[id] = merged
		return nil
	}
	c.docs[id] = copyData(data)
	return nil
}

// Delete removes a document. Its sub-collections are left in place.
func (m *Memory) Delete(ctx context.Context, doc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, err := Split(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return nil
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
