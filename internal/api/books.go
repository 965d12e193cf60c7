package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/ShelfView/internal/model"
	pdfutil "github.com/dharsanguruparan/ShelfView/internal/pdf"
	"github.com/dharsanguruparan/ShelfView/internal/queue"
)

// bookInput is the editable part of a book.
type bookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	CoverImage      string `json:"cover_image"`
	PublicationYear int    `json:"publication_year"`
	ISBN            string `json:"isbn"`
}

func (in *bookInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if in.Title == "" || in.Author == "" {
		return errors.New("title and author are required")
	}
	if in.PublicationYear < 0 {
		return errors.New("publication_year must not be negative")
	}
	return nil
}

func (in *bookInput) apply(b *model.Book) {
	b.Title = in.Title
	b.Author = in.Author
	b.Category = strings.TrimSpace(in.Category)
	b.Description = in.Description
	b.CoverImage = in.CoverImage
	b.PublicationYear = in.PublicationYear
	b.ISBN = in.ISBN
}

type reviewInput struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list books", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "search books", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to search books")
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, id string) {
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, book)
}

// handleCreateBook accepts a multipart form with a "metadata" JSON part and an
// optional "file" PDF part.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64*1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}

	var (
		input    *bookInput
		document []byte
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondError(w, statusForBodyError(err), "invalid multipart body")
			return
		}
		switch part.FormName() {
		case "metadata":
			input = &bookInput{}
			if err := json.NewDecoder(part).Decode(input); err != nil {
				part.Close()
				respondError(w, http.StatusBadRequest, "invalid metadata")
				return
			}
		case "file":
			document, err = s.readDocument(part)
			if err != nil {
				part.Close()
				respondError(w, statusForBodyError(err), err.Error())
				return
			}
		}
		part.Close()
	}
	if input == nil {
		respondError(w, http.StatusBadRequest, "metadata part is required")
		return
	}
	if err := input.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.now().UTC()
	book := &model.Book{ID: uuid.NewString(), Reviews: []model.Review{}, CreatedAt: now, UpdatedAt: now}
	input.apply(book)

	if document != nil {
		if s.dispatcher == nil {
			pages, err := pdfutil.PageCount(document)
			if err != nil {
				respondError(w, http.StatusBadRequest, "unreadable pdf")
				return
			}
			book.PageCount = pages
		}
		book.ObjectKey = fmt.Sprintf("books/%s.pdf", book.ID)
		if err := s.blobs.PutDocument(ctx, book.ObjectKey, document, "application/pdf"); err != nil {
			s.logger.ErrorContext(ctx, "store document", "book_id", book.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to store document")
			return
		}
	}
	if err := s.catalog.Create(ctx, book); err != nil {
		s.logger.ErrorContext(ctx, "create book", "book_id", book.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store book")
		return
	}
	if document != nil && s.dispatcher != nil {
		payload := queue.InspectPayload{BookID: book.ID, ObjectKey: book.ObjectKey}
		if err := s.dispatcher.EnqueueInspect(ctx, payload); err != nil {
			// The page count endpoint computes it lazily instead.
			s.logger.WarnContext(ctx, "enqueue inspect", "book_id", book.ID, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "book created", "book_id", book.ID, "title", book.Title, "has_document", document != nil)
	respondJSON(w, http.StatusCreated, book)
}

// readDocument reads an uploaded PDF, enforcing the size limit and sniffing
// the content.
func (s *Server) readDocument(part *multipart.Part) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, errTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	if mtype := mimetype.Detect(data); !mtype.Is("application/pdf") {
		return nil, fmt.Errorf("only PDF files supported, got %s", mtype.String())
	}
	return data, nil
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, id string) {
	if !s.authorizeAdmin(w, r) {
		return
	}
	var input bookInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := input.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	input.apply(book)
	book.UpdatedAt = s.now().UTC()
	if err := s.catalog.Update(r.Context(), book); err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "book not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "update book", "book_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update book")
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, id string) {
	if !s.authorizeAdmin(w, r) {
		return
	}
	ctx := r.Context()
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "delete book", "book_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete book")
		return
	}
	s.pageCounts.Remove(id)
	if book.ObjectKey != "" {
		if err := s.blobs.DeleteDocument(ctx, book.ObjectKey); err != nil {
			s.logger.WarnContext(ctx, "delete document", "book_id", id, "error", err)
		}
	}
	if err := s.blobs.DeletePreviews(ctx, id+"/"); err != nil {
		s.logger.WarnContext(ctx, "delete previews", "book_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var input reviewInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	input.Text = strings.TrimSpace(input.Text)
	input.Author = strings.TrimSpace(input.Author)
	if input.Text == "" || input.Author == "" {
		respondError(w, http.StatusBadRequest, "review text and author are required")
		return
	}
	rev := &model.Review{ID: uuid.NewString(), BookID: id, Text: input.Text, Author: input.Author}
	if err := s.catalog.AddReview(r.Context(), rev); err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "book not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "add review", "book_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to add review")
		return
	}
	respondJSON(w, http.StatusCreated, rev)
}

const maxJSONBody = 1 << 20

var errTooLarge = errors.New("file exceeds size limit")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return err
	}
	return json.NewDecoder(bytes.NewReader(body)).Decode(v)
}

func statusForBodyError(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
