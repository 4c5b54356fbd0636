package document

import (
	"context"
	"fmt"
	"sync"

	"github.com/textaudit/layered-audit/internal/types"
)

// MemoryRepository is an in-process Repository used by the CLI and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]types.Document
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]types.Document)}
}

// InsertDocument stores a copy of doc. Ids are never overwritten.
func (m *MemoryRepository) InsertDocument(_ context.Context, doc *types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	m.docs[doc.ID] = *doc
	return nil
}

// GetDocument returns a copy of the stored document, or nil when absent.
func (m *MemoryRepository) GetDocument(_ context.Context, id string) (*types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}
