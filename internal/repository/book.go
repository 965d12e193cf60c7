package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// ErrNotFound is returned when no book matches the requested id.
var ErrNotFound = errors.New("book not found")

const bookColumns = `id, title, author, category, description, cover_image, publication_year, isbn, page_count, object_key, created_at, updated_at`

// BookRepository wraps all SQL used by the API and the worker.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository constructs a repository.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// List returns every book with its reviews, ordered by title.
func (r *BookRepository) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	books, err := scanBooks(rows)
	if err != nil {
		return nil, err
	}
	return books, r.attachReviews(ctx, books)
}

// Search returns books whose title, author or category contains term,
// ignoring case. An empty term matches nothing.
func (r *BookRepository) Search(ctx context.Context, term string) ([]model.Book, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []model.Book{}, nil
	}
	pattern := "%" + escapeLike(term) + "%"
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE title ILIKE $1 OR author ILIKE $1 OR category ILIKE $1
		ORDER BY title, id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	books, err := scanBooks(rows)
	if err != nil {
		return nil, err
	}
	return books, r.attachReviews(ctx, books)
}

// Get returns a book by id.
func (r *BookRepository) Get(ctx context.Context, id string) (*model.Book, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id=$1`, id)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select book: %w", err)
	}
	books := []model.Book{*book}
	if err := r.attachReviews(ctx, books); err != nil {
		return nil, err
	}
	return &books[0], nil
}

// Create inserts a book. ID and timestamps must already be set.
func (r *BookRepository) Create(ctx context.Context, b *model.Book) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, b.ID, b.Title, b.Author, b.Category, b.Description, b.CoverImage, b.PublicationYear, b.ISBN, b.PageCount, b.ObjectKey, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// Update replaces the editable metadata of a book. The stored document and
// page count are left alone.
func (r *BookRepository) Update(ctx context.Context, b *model.Book) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE books
		SET title=$1, author=$2, category=$3, description=$4, cover_image=$5,
			publication_year=$6, isbn=$7, updated_at=$8
		WHERE id=$9
	`, b.Title, b.Author, b.Category, b.Description, b.CoverImage, b.PublicationYear, b.ISBN, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a book and, through the foreign key, its reviews.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddReview stores a review for an existing book.
func (r *BookRepository) AddReview(ctx context.Context, rev *model.Review) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO reviews (id, book_id, text, author, created_at)
		SELECT $1::text, id, $3::text, $4::text, $5::timestamptz FROM books WHERE id=$2
	`, rev.ID, rev.BookID, rev.Text, rev.Author, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPageCount records the number of pages found in the stored document.
func (r *BookRepository) SetPageCount(ctx context.Context, id string, pages int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE books SET page_count=$1, updated_at=$2 WHERE id=$3`, pages, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update page count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookRepository) attachReviews(ctx context.Context, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]string, len(books))
	index := make(map[string]int, len(books))
	for i := range books {
		ids[i] = books[i].ID
		index[books[i].ID] = i
		books[i].Reviews = []model.Review{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, book_id, text, author FROM reviews
		WHERE book_id = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rev model.Review
		if err := rows.Scan(&rev.ID, &rev.BookID, &rev.Text, &rev.Author); err != nil {
			return fmt.Errorf("scan review: %w", err)
		}
		if i, ok := index[rev.BookID]; ok {
			books[i].Reviews = append(books[i].Reviews, rev)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate reviews: %w", err)
	}
	return nil
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var b model.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Description, &b.CoverImage,
		&b.PublicationYear, &b.ISBN, &b.PageCount, &b.ObjectKey, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBooks(rows pgx.Rows) ([]model.Book, error) {
	defer rows.Close()
	books := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// escapeLike escapes the ILIKE wildcards so user input is matched literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
