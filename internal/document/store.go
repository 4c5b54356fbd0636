package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/textaudit/layered-audit/internal/types"
)

// Repository persists document rows. *db.DB and MemoryRepository implement it.
type Repository interface {
	InsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
}

// NotFoundError is returned when a document id is unknown.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.ID)
}

// Store implements services.DocumentService on top of a Repository.
// Documents are immutable, so fetched versions are cached by id.
type Store struct {
	repo  Repository
	cache *lru.Cache[string, *types.Document]
	now   func() time.Time
}

// NewStore creates a Store with an LRU of cacheSize documents (minimum 1).
func NewStore(repo Repository, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, *types.Document](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}
	return &Store{repo: repo, cache: cache, now: time.Now}, nil
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, id string) (*types.Document, error) {
	if doc, ok := s.cache.Get(id); ok {
		return doc, nil
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &NotFoundError{ID: id}
	}
	s.cache.Add(id, doc)
	return doc, nil
}

// Upload extracts the file's text and stores it as a new document.
func (s *Store) Upload(ctx context.Context, file *types.Upload, parentID string) (string, error) {
	text, err := ExtractText(file)
	if err != nil {
		return "", err
	}
	return s.UploadText(ctx, text, file.Filename, parentID)
}

// UploadText stores text as a new document and returns its id.
func (s *Store) UploadText(ctx context.Context, text, filename, parentID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("document text is empty")
	}
	if filename == "" {
		filename = "revision.txt"
	}
	doc := &types.Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		Text:      text,
		ParentID:  parentID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}
	s.cache.Add(doc.ID, doc)
	return doc.ID, nil
}
