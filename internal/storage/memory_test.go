package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

func TestMemoryCatalogSearch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog(
		model.Book{ID: "1", Title: "Clean Code", Author: "Robert C. Martin", Category: "Programming"},
		model.Book{ID: "2", Title: "The Sealed Nectar", Author: "Safiur Rahman Mubarakpuri", Category: "Biography"},
	)

	tests := []struct {
		term string
		want []string
	}{
		{term: "clean", want: []string{"1"}},
		{term: "MARTIN", want: []string{"1"}},
		{term: "biography", want: []string{"2"}},
		{term: "e", want: []string{"1", "2"}},
		{term: "", want: []string{}},
		{term: "   ", want: []string{}},
		{term: "cobol", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			books, err := c.Search(ctx, tt.term)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := []string{}
			for _, b := range books {
				got = append(got, b.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestMemoryCatalogReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog(model.Book{ID: "1", Title: "Go"})
	if err := c.AddReview(ctx, &model.Review{ID: "r1", BookID: "1", Text: "nice"}); err != nil {
		t.Fatalf("AddReview: %v", err)
	}

	b, err := c.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b.Title = "changed"
	b.Reviews[0].Text = "changed"

	again, _ := c.Get(ctx, "1")
	if again.Title != "Go" || again.Reviews[0].Text != "nice" {
		t.Errorf("catalog state mutated through a returned copy: %+v", again)
	}
}

func TestMemoryCatalogNotFound(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	if _, err := c.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if err := c.Delete(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: %v", err)
	}
	if err := c.AddReview(ctx, &model.Review{BookID: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddReview: %v", err)
	}
	if err := c.SetPageCount(ctx, "x", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPageCount: %v", err)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	inserted, err := Seed(ctx, c)
	if err != nil || !inserted {
		t.Fatalf("Seed = %v, %v", inserted, err)
	}
	books, _ := c.List(ctx)
	if len(books) != len(SampleBooks()) {
		t.Fatalf("got %d books", len(books))
	}
	for _, b := range books {
		if len(b.Reviews) != 1 || b.Reviews[0].Author != "Anonymous" {
			t.Errorf("unexpected reviews for %s: %+v", b.Title, b.Reviews)
		}
	}

	inserted, err = Seed(ctx, c)
	if err != nil || inserted {
		t.Fatalf("second Seed = %v, %v", inserted, err)
	}
}

func TestMemoryBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBlobs()
	if _, _, err := m.GetPreview(ctx, "b1/0000@1.0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPreview on empty store: %v", err)
	}
	if err := m.PutPreview(ctx, "b1/0000@1.0", []byte("img"), "image/png"); err != nil {
		t.Fatalf("PutPreview: %v", err)
	}
	if err := m.PutPreview(ctx, "b2/0000@1.0", []byte("img"), "image/png"); err != nil {
		t.Fatalf("PutPreview: %v", err)
	}
	data, ct, err := m.GetPreview(ctx, "b1/0000@1.0")
	if err != nil || string(data) != "img" || ct != "image/png" {
		t.Fatalf("GetPreview = %q, %q, %v", data, ct, err)
	}

	if err := m.DeletePreviews(ctx, "b1/"); err != nil {
		t.Fatalf("DeletePreviews: %v", err)
	}
	if _, _, err := m.GetPreview(ctx, "b1/0000@1.0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("preview survived deletion: %v", err)
	}
	if _, _, err := m.GetPreview(ctx, "b2/0000@1.0"); err != nil {
		t.Errorf("unrelated preview deleted: %v", err)
	}
}
