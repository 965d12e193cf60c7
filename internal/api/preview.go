package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dharsanguruparan/ShelfView/internal/imaging"
	"github.com/dharsanguruparan/ShelfView/internal/metrics"
	"github.com/dharsanguruparan/ShelfView/internal/model"
	pdfutil "github.com/dharsanguruparan/ShelfView/internal/pdf"
	"github.com/dharsanguruparan/ShelfView/internal/queue"
)

const previewCacheControl = "public, max-age=86400, immutable"

type pageCountResponse struct {
	TotalPages int `json:"total_pages"`
}

// knownPageCount returns the page count recorded for book or cached from an
// earlier computation, or zero.
func (s *Server) knownPageCount(book *model.Book) int {
	if book.PageCount > 0 {
		return book.PageCount
	}
	if n, ok := s.pageCounts.Get(book.ID); ok {
		return n
	}
	return 0
}

// handlePreview serves the page image for ?page=&scale=. A missing scaled
// variant is derived from the normal-scale image and stored.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	page := 0
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}
	scale := model.ScaleNormal
	if v := q.Get("scale"); v != "" {
		parsed, err := model.ParseScale(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid scale")
			return
		}
		scale = parsed
	}

	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	if total := s.knownPageCount(book); total > 0 && page >= total {
		respondError(w, http.StatusNotFound, "page out of range")
		return
	}

	target := model.PreviewTarget{DocumentID: id, Page: page, Scale: scale}
	data, contentType, err := s.blobs.GetPreview(ctx, target.ObjectKey())
	if err != nil && isNotFound(err) && scale != model.ScaleNormal {
		data, err = s.deriveVariant(r, target)
		contentType = imaging.ContentType
	}
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "preview not available")
			return
		}
		s.logger.ErrorContext(ctx, "load preview", "target", target.String(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load preview")
		return
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", previewCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) deriveVariant(r *http.Request, target model.PreviewTarget) ([]byte, error) {
	ctx := r.Context()
	src, _, err := s.blobs.GetPreview(ctx, target.WithScale(model.ScaleNormal).ObjectKey())
	if err != nil {
		return nil, err
	}
	out, err := imaging.Rescale(src, target.Scale)
	if err != nil {
		return nil, err
	}
	metrics.Rescales.Inc()
	if err := s.blobs.PutPreview(ctx, target.ObjectKey(), out, imaging.ContentType); err != nil {
		s.logger.WarnContext(ctx, "store derived preview", "target", target.String(), "error", err)
	}
	return out, nil
}

func (s *Server) handlePageCount(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	if n := s.knownPageCount(book); n > 0 {
		respondJSON(w, http.StatusOK, pageCountResponse{TotalPages: n})
		return
	}
	if book.ObjectKey == "" {
		respondError(w, http.StatusNotFound, "document not available")
		return
	}
	data, err := s.blobs.GetDocument(ctx, book.ObjectKey)
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "document not available")
			return
		}
		s.logger.ErrorContext(ctx, "load document", "book_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	n, err := pdfutil.PageCount(data)
	if err != nil {
		s.logger.ErrorContext(ctx, "count pages", "book_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read document")
		return
	}
	s.pageCounts.Add(id, n)
	if err := s.catalog.SetPageCount(ctx, id, n); err != nil {
		s.logger.WarnContext(ctx, "store page count", "book_id", id, "error", err)
	}
	respondJSON(w, http.StatusOK, pageCountResponse{TotalPages: n})
}

// handleUploadPage stores the normal-scale image of one page. Scaled variants
// of the previous image are dropped.
func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request, id, pageParam string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	if !s.authorizeAdmin(w, r) {
		return
	}
	ctx := r.Context()
	page, err := strconv.Atoi(pageParam)
	if err != nil || page < 0 {
		respondError(w, http.StatusBadRequest, "invalid page")
		return
	}
	book, ok := s.loadBook(w, r, id)
	if !ok {
		return
	}
	if total := s.knownPageCount(book); total > 0 && page >= total {
		respondError(w, http.StatusBadRequest, "page out of range")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxImageSize))
	if err != nil {
		respondError(w, statusForBodyError(err), "invalid body")
		return
	}
	mtype := mimetype.Detect(data)
	if len(data) == 0 || !strings.HasPrefix(mtype.String(), "image/") {
		respondError(w, http.StatusBadRequest, "page must be an image")
		return
	}

	target := model.FirstPage(id).WithPage(page)
	if err := s.blobs.PutPreview(ctx, target.ObjectKey(), data, mtype.String()); err != nil {
		s.logger.ErrorContext(ctx, "store page", "target", target.String(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store page")
		return
	}
	for _, scale := range model.Scales {
		if scale == model.ScaleNormal {
			continue
		}
		if err := s.blobs.DeletePreviews(ctx, target.WithScale(scale).ObjectKey()); err != nil {
			s.logger.WarnContext(ctx, "drop stale variant", "target", target.String(), "error", err)
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueRescale(ctx, queue.RescalePayload{BookID: id, Page: page}); err != nil {
			s.logger.WarnContext(ctx, "enqueue rescale", "target", target.String(), "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
