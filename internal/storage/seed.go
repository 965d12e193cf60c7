package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// Seeder is the subset of a catalog needed to insert sample data.
type Seeder interface {
	List(ctx context.Context) ([]model.Book, error)
	Create(ctx context.Context, b *model.Book) error
	AddReview(ctx context.Context, rev *model.Review) error
}

// SampleBooks returns the development catalog. Documents are not included;
// they are uploaded through the admin API.
func SampleBooks() []model.Book {
	return []model.Book{
		{
			Title:           "The Sealed Nectar",
			Author:          "Safiur Rahman Mubarakpuri",
			Category:        "Biography",
			Description:     "Comprehensive biography of Prophet Muhammad (peace be upon him)",
			CoverImage:      "https://example.com/sealed-nectar.jpg",
			PublicationYear: 1979,
			ISBN:            "978-9960-899-55-8",
		},
		{
			Title:           "Clean Code",
			Author:          "Robert C. Martin",
			Category:        "Programming",
			Description:     "A handbook of agile software craftsmanship",
			CoverImage:      "https://example.com/clean-code.jpg",
			PublicationYear: 2008,
			ISBN:            "978-0132350884",
		},
	}
}

// Seed inserts SampleBooks, each with one review, when the catalog is empty.
// It reports whether anything was inserted.
func Seed(ctx context.Context, catalog Seeder) (bool, error) {
	existing, err := catalog.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list books: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	now := time.Now().UTC()
	for _, b := range SampleBooks() {
		b.ID = uuid.NewString()
		b.CreatedAt = now
		b.UpdatedAt = now
		if err := catalog.Create(ctx, &b); err != nil {
			return false, fmt.Errorf("seed book %q: %w", b.Title, err)
		}
		rev := model.Review{
			ID:     uuid.NewString(),
			BookID: b.ID,
			Text:   "Great book about " + b.Title,
			Author: "Anonymous",
		}
		if err := catalog.AddReview(ctx, &rev); err != nil {
			return false, fmt.Errorf("seed review for %q: %w", b.Title, err)
		}
	}
	return true, nil
}
