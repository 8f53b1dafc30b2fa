package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents as JSONB rows keyed by (collection, id). The
// table is created by the database migrations.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store on an existing connection pool
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// List returns every document of the collection in insertion order
func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	query := `
		SELECT id, data
		FROM documents
		WHERE collection = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return scanDocuments(rows)
}

// Get returns a single document
func (p *Postgres) Get(ctx context.Context, doc string) (*Document, error) {
	collection, id, err := Split(doc)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, data FROM documents WHERE collection = $1 AND id = $2`

	var d Document
	var raw []byte
	err = p.pool.QueryRow(ctx, query, collection, id).Scan(&d.ID, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", doc, err)
	}
	if d.Data, err = decodeData(raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", doc, err)
	}
	return &d, nil
}

// Where matches a top-level field by its text representation
func (p *Postgres) Where(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	query := `
		SELECT id, data
		FROM documents
		WHERE collection = $1 AND data->>$2 = $3
		ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, collection, field, fmt.Sprint(value))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	return scanDocuments(rows)
}

// Set upserts a document. A merge keeps existing top-level fields that data
// does not mention.
func (p *Postgres) Set(ctx context.Context, doc string, data map[string]any, merge bool) error {
	collection, id, err := Split(doc)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", doc, err)
	}

	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`
	if merge {
		query = `
			INSERT INTO documents (collection, id, data)
			VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, id) DO UPDATE
			SET data = documents.data || EXCLUDED.data, updated_at = NOW()
		`
	}
	if _, err := p.pool.Exec(ctx, query, collection, id, string(payload)); err != nil {
		return fmt.Errorf("failed to set %s: %w", doc, err)
	}
	return nil
}

// Delete removes a document
func (p *Postgres) Delete(ctx context.Context, doc string) error {
	collection, id, err := Split(doc)
	if err != nil {
		return err
	}
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := p.pool.Exec(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", doc, err)
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]Document, error) {
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		var raw []byte
		if err := rows.Scan(&d.ID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", d.ID, err)
		}
		d.Data = data
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func decodeData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
