package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dharsanguruparan/ShelfView/internal/model"
	"github.com/dharsanguruparan/ShelfView/internal/signing"
)

type downloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	DirectURL string    `json:"direct_url,omitempty"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	s.serveDocument(w, r, book)
}

// handleDownloadURL issues a short-lived signed link to the document. When the
// blob store can presign, a direct object storage link is included too.
func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	if book.ObjectKey == "" {
		respondError(w, http.StatusNotFound, "document not available")
		return
	}
	q, expires := s.signer.Query(book.ID, s.now(), s.cfg.SignedURLTTL)
	res := downloadURLResponse{
		URL:       apiPrefix + "/download?" + q.Encode(),
		ExpiresAt: expires,
	}
	if p, ok := s.blobs.(presigner); ok {
		direct, err := p.PresignDocumentURL(r.Context(), book.ObjectKey, book.FileName(), s.cfg.SignedURLTTL)
		if err != nil {
			s.logger.WarnContext(r.Context(), "presign document", "book_id", id, "error", err)
		} else {
			res.DirectURL = direct
		}
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSignedDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := s.signer.Verify(r.URL.Query(), s.now())
	if err != nil {
		if errors.Is(err, signing.ErrExpired) {
			respondError(w, http.StatusUnauthorized, "url expired")
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	s.serveDocument(w, r, book)
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, book *model.Book) {
	if book.ObjectKey == "" {
		respondError(w, http.StatusNotFound, "document not available")
		return
	}
	data, err := s.blobs.GetDocument(r.Context(), book.ObjectKey)
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "document not available")
			return
		}
		s.logger.ErrorContext(r.Context(), "load document", "book_id", book.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	name := book.FileName()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, book.UpdatedAt, bytes.NewReader(data))
}
