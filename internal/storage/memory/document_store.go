package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"risklab/internal/storage"
)

// DocumentStore is an in-memory implementation of storage.DocumentStore.
type DocumentStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage // keyed by tenant|scope|key
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		data: make(map[string]json.RawMessage),
	}
}

// documentKey generates a unique key for a document.
func documentKey(tenant, scope, key string) string {
	return fmt.Sprintf("%s|%s|%s", tenant, scope, key)
}

// Set stores a document under (tenant, scope, key), replacing any previous value.
func (s *DocumentStore) Set(_ context.Context, tenant, scope, key string, doc json.RawMessage) error {
	if tenant == "" || scope == "" || key == "" || len(doc) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	docCopy := make(json.RawMessage, len(doc))
	copy(docCopy, doc)
	s.data[documentKey(tenant, scope, key)] = docCopy
	return nil
}

// Get retrieves a document. Returns ErrNotFound if absent.
func (s *DocumentStore) Get(_ context.Context, tenant, scope, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.data[documentKey(tenant, scope, key)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	docCopy := make(json.RawMessage, len(doc))
	copy(docCopy, doc)
	return docCopy, nil
}

// Delete removes a document. Deleting an absent document is a no-op.
func (s *DocumentStore) Delete(_ context.Context, tenant, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, documentKey(tenant, scope, key))
	return nil
}

// Verify interface compliance at compile time.
var _ storage.DocumentStore = (*DocumentStore)(nil)
