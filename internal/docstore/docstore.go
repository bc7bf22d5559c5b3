package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docquery/internal/domain"
)

// MemoryStore keeps ingested documents' extracted text in memory. It serves
// the full-document fallback path when retrieval finds nothing useful.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]domain.Document)}
}

// Put registers or replaces a document.
func (s *MemoryStore) Put(doc domain.Document) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// GetDocumentByID implements domain.DocumentLookup.
func (s *MemoryStore) GetDocumentByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return &doc, nil
}

// Delete removes a document; deleting an unknown id is a no-op.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
}
