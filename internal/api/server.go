package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	sloghttp "github.com/samber/slog-http"

	"github.com/dharsanguruparan/ShelfView/internal/config"
	"github.com/dharsanguruparan/ShelfView/internal/model"
	"github.com/dharsanguruparan/ShelfView/internal/queue"
	"github.com/dharsanguruparan/ShelfView/internal/repository"
	"github.com/dharsanguruparan/ShelfView/internal/s3storage"
	"github.com/dharsanguruparan/ShelfView/internal/signing"
	"github.com/dharsanguruparan/ShelfView/internal/storage"
)

const apiPrefix = "/api/v1"

// Catalog stores book metadata and reviews. *repository.BookRepository and
// *storage.MemoryCatalog implement it.
type Catalog interface {
	List(ctx context.Context) ([]model.Book, error)
	Search(ctx context.Context, term string) ([]model.Book, error)
	Get(ctx context.Context, id string) (*model.Book, error)
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id string) error
	AddReview(ctx context.Context, rev *model.Review) error
	SetPageCount(ctx context.Context, id string, pages int) error
}

// Blobs stores book documents and page images. *s3storage.Storage and
// *storage.MemoryBlobs implement it.
type Blobs interface {
	PutDocument(ctx context.Context, key string, data []byte, contentType string) error
	GetDocument(ctx context.Context, key string) ([]byte, error)
	DeleteDocument(ctx context.Context, key string) error
	PutPreview(ctx context.Context, key string, data []byte, contentType string) error
	GetPreview(ctx context.Context, key string) ([]byte, string, error)
	DeletePreviews(ctx context.Context, prefix string) error
}

// Dispatcher schedules background work. A nil Dispatcher makes the server
// compute page counts inline and scaled previews on demand.
type Dispatcher interface {
	EnqueueInspect(ctx context.Context, payload queue.InspectPayload) error
	EnqueueRescale(ctx context.Context, payload queue.RescalePayload) error
}

// presigner is implemented by blob stores able to hand out direct links.
type presigner interface {
	PresignDocumentURL(ctx context.Context, objectKey, fileName string, expiry time.Duration) (string, error)
}

// Server exposes the catalog and preview endpoints.
type Server struct {
	cfg        config.HTTP
	catalog    Catalog
	blobs      Blobs
	dispatcher Dispatcher
	signer     *signing.Signer
	pageCounts *expirable.LRU[string, int]
	logger     *slog.Logger
	now        func() time.Time
	server     *http.Server
	once       sync.Once
}

// New constructs a Server. dispatcher may be nil.
func New(cfg config.HTTP, catalog Catalog, blobs Blobs, dispatcher Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		catalog:    catalog,
		blobs:      blobs,
		dispatcher: dispatcher,
		signer:     signing.NewSigner([]byte(cfg.SigningSecret)),
		pageCounts: expirable.NewLRU[string, int](cfg.PageCountCache, nil, time.Hour),
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc(apiPrefix+"/books", s.handleBooks)
	mux.HandleFunc(apiPrefix+"/books/", s.handleBookRoute)
	mux.HandleFunc(apiPrefix+"/download", s.handleSignedDownload)

	var h http.Handler = metricsMiddleware(mux)
	if rl := s.cfg.RateLimit; rl.Enabled {
		h = rateLimitMiddleware(rl.Interval, rl.Burst, rl.CacheSize, rl.TTL)(h)
	}
	h = cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
	}).Handler(h)
	h = sloghttp.New(s.logger)(h)
	return sloghttp.Recovery(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r)
	case http.MethodPost:
		s.handleCreateBook(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix+"/books/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if parts[0] == "" {
		s.handleBooks(w, r)
		return
	}
	if parts[0] == "search" && len(parts) == 1 {
		s.handleSearch(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleBook(w, r, id)
		return
	}
	switch {
	case parts[1] == "reviews" && len(parts) == 2:
		s.handleAddReview(w, r, id)
	case parts[1] == "preview" && len(parts) == 2:
		s.handlePreview(w, r, id)
	case parts[1] == "page-count" && len(parts) == 2:
		s.handlePageCount(w, r, id)
	case parts[1] == "pages" && len(parts) == 3:
		s.handleUploadPage(w, r, id, parts[2])
	case parts[1] == "download" && len(parts) == 2:
		s.handleDownload(w, r, id)
	case parts[1] == "download-url" && len(parts) == 2:
		s.handleDownloadURL(w, r, id)
	default:
		respondError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetBook(w, r, id)
	case http.MethodPut:
		s.handleUpdateBook(w, r, id)
	case http.MethodDelete:
		s.handleDeleteBook(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

// loadBook fetches a book and writes the error response when it cannot.
func (s *Server) loadBook(w http.ResponseWriter, r *http.Request, id string) (*model.Book, bool) {
	book, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "book not found")
			return nil, false
		}
		s.logger.ErrorContext(r.Context(), "load book", "book_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load book")
		return nil, false
	}
	return book, true
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, s3storage.ErrNotFound)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}
