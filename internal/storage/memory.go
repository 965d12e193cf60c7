// Package storage contains the in-memory catalog and blob store used when no
// database or object storage is configured.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

var (
	// ErrNotFound is returned for unknown books and missing blobs.
	ErrNotFound = errors.New("not found")
)

// MemoryCatalog keeps books and their reviews in a map guarded by an RWMutex.
type MemoryCatalog struct {
	mu    sync.RWMutex
	books map[string]*model.Book
}

// NewMemoryCatalog constructs a catalog seeded with books.
func NewMemoryCatalog(books ...model.Book) *MemoryCatalog {
	c := &MemoryCatalog{books: make(map[string]*model.Book, len(books))}
	for i := range books {
		b := clone(&books[i])
		c.books[b.ID] = b
	}
	return c
}

func (m *MemoryCatalog) List(_ context.Context) ([]model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(*model.Book) bool { return true }), nil
}

// Search matches term against title, author and category, ignoring case. An
// empty term matches nothing.
func (m *MemoryCatalog) Search(_ context.Context, term string) ([]model.Book, error) {
	if strings.TrimSpace(term) == "" {
		return []model.Book{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(b *model.Book) bool { return b.Matches(term) }), nil
}

// Get returns a copy of the book.
func (m *MemoryCatalog) Get(_ context.Context, id string) (*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (m *MemoryCatalog) Create(_ context.Context, b *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; ok {
		return errors.New("book already exists")
	}
	m.books[b.ID] = clone(b)
	return nil
}

// Update replaces the editable metadata. The stored document, page count and
// reviews are left alone.
func (m *MemoryCatalog) Update(_ context.Context, b *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[b.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = b.Title
	cur.Author = b.Author
	cur.Category = b.Category
	cur.Description = b.Description
	cur.CoverImage = b.CoverImage
	cur.PublicationYear = b.PublicationYear
	cur.ISBN = b.ISBN
	cur.UpdatedAt = b.UpdatedAt
	return nil
}

func (m *MemoryCatalog) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *MemoryCatalog) AddReview(_ context.Context, rev *model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[rev.BookID]
	if !ok {
		return ErrNotFound
	}
	b.Reviews = append(b.Reviews, *rev)
	return nil
}

func (m *MemoryCatalog) SetPageCount(_ context.Context, id string, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return ErrNotFound
	}
	b.PageCount = pages
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// sorted returns copies of the matching books ordered like the SQL catalog.
// Callers hold the read lock.
func (m *MemoryCatalog) sorted(keep func(*model.Book) bool) []model.Book {
	out := []model.Book{}
	for _, b := range m.books {
		if keep(b) {
			out = append(out, *clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clone(b *model.Book) *model.Book {
	c := *b
	c.Reviews = append([]model.Review{}, b.Reviews...)
	return &c
}

type blob struct {
	data        []byte
	contentType string
}

// MemoryBlobs stores documents and preview images in two maps, mirroring the
// document and preview buckets of the object store.
type MemoryBlobs struct {
	mu        sync.RWMutex
	documents map[string]blob
	previews  map[string]blob
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{
		documents: make(map[string]blob),
		previews:  make(map[string]blob),
	}
}

func (m *MemoryBlobs) PutDocument(_ context.Context, key string, data []byte, contentType string) error {
	return m.put(m.documents, key, data, contentType)
}

func (m *MemoryBlobs) GetDocument(_ context.Context, key string) ([]byte, error) {
	data, _, err := m.get(m.documents, key)
	return data, err
}

func (m *MemoryBlobs) DeleteDocument(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, key)
	return nil
}

func (m *MemoryBlobs) PutPreview(_ context.Context, key string, data []byte, contentType string) error {
	return m.put(m.previews, key, data, contentType)
}

func (m *MemoryBlobs) GetPreview(_ context.Context, key string) ([]byte, string, error) {
	return m.get(m.previews, key)
}

// DeletePreviews removes every preview image stored under prefix.
func (m *MemoryBlobs) DeletePreviews(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.previews {
		if strings.HasPrefix(key, prefix) {
			delete(m.previews, key)
		}
	}
	return nil
}

func (m *MemoryBlobs) put(bucket map[string]blob, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *MemoryBlobs) get(bucket map[string]blob, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := bucket[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}
