// Package model contains the struct definitions shared by the service, the
// worker and the preview client.
package model

import (
	"strings"
	"time"
)

// Review is a reader comment attached to a book.
type Review struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

// Book is a catalog entry. The preview subsystem treats it as immutable.
type Book struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	CoverImage      string `json:"cover_image"`
	PublicationYear int    `json:"publication_year"`
	ISBN            string `json:"isbn"`
	// PageCount is zero until the PDF has been inspected.
	PageCount int `json:"page_count,omitempty"`
	// ObjectKey locates the PDF in the document bucket and never leaves the
	// server.
	ObjectKey string    `json:"-"`
	Reviews   []Review  `json:"reviews"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether the book title, author or category contains term,
// ignoring case.
func (b *Book) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(b.Title), term) ||
		strings.Contains(strings.ToLower(b.Author), term) ||
		strings.Contains(strings.ToLower(b.Category), term)
}

// FileName is the name a downloaded copy of the book is saved under.
func (b *Book) FileName() string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(b.Title))
	if name == "" {
		name = b.ID
	}
	return name + ".pdf"
}

// Filter returns the books matching term. An empty term returns every book.
func Filter(books []Book, term string) []Book {
	if strings.TrimSpace(term) == "" {
		return books
	}
	out := make([]Book, 0, len(books))
	for i := range books {
		if books[i].Matches(term) {
			out = append(out, books[i])
		}
	}
	return out
}
