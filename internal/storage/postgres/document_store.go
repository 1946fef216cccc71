package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"risklab/internal/storage"
)

// DocumentStore implements storage.DocumentStore using PostgreSQL.
// Documents are small JSON blobs keyed by (tenant, scope, key); Set
// overwrites any previous version.
type DocumentStore struct {
	pool *Pool
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(pool *Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DocumentStore = (*DocumentStore)(nil)

// Set stores a document, replacing any existing one under the same key.
func (s *DocumentStore) Set(ctx context.Context, tenant, scope, key string, doc json.RawMessage) error {
	if tenant == "" || scope == "" || key == "" || len(doc) == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO documents (tenant, scope, doc_key, doc, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant, scope, doc_key)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query, tenant, scope, key, []byte(doc))
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// Get retrieves a document. Returns ErrNotFound if it does not exist.
func (s *DocumentStore) Get(ctx context.Context, tenant, scope, key string) (json.RawMessage, error) {
	query := `
		SELECT doc
		FROM documents
		WHERE tenant = $1 AND scope = $2 AND doc_key = $3
	`

	var doc []byte
	err := s.pool.QueryRow(ctx, query, tenant, scope, key).Scan(&doc)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return json.RawMessage(doc), nil
}

// Delete removes a document. Deleting an absent document is a no-op.
func (s *DocumentStore) Delete(ctx context.Context, tenant, scope, key string) error {
	query := `DELETE FROM documents WHERE tenant = $1 AND scope = $2 AND doc_key = $3`

	_, err := s.pool.Exec(ctx, query, tenant, scope, key)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
