package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ShelfView/internal/imaging"
	"github.com/dharsanguruparan/ShelfView/internal/metrics"
	"github.com/dharsanguruparan/ShelfView/internal/model"
	pdfutil "github.com/dharsanguruparan/ShelfView/internal/pdf"
	"github.com/dharsanguruparan/ShelfView/internal/queue"
)

// Catalog records what the worker learns about a book.
type Catalog interface {
	SetPageCount(ctx context.Context, id string, pages int) error
}

// Blobs reads stored documents and reads and writes preview images.
type Blobs interface {
	GetDocument(ctx context.Context, key string) ([]byte, error)
	GetPreview(ctx context.Context, key string) ([]byte, string, error)
	PutPreview(ctx context.Context, key string, data []byte, contentType string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	catalog Catalog
	blobs   Blobs
	logger  *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(catalog Catalog, blobs Blobs, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{catalog: catalog, blobs: blobs, logger: logger}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.InspectBookTask, p.handleInspect)
	mux.HandleFunc(queue.RescalePreviewTask, p.handleRescale)
	return mux
}

func (p *Processor) handleInspect(ctx context.Context, task *asynq.Task) error {
	var payload queue.InspectPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	logger := p.logger.With("task", task.Type(), "book_id", payload.BookID)

	data, err := p.blobs.GetDocument(ctx, payload.ObjectKey)
	if err != nil {
		logger.Error("inspect failed", "error", err)
		return fmt.Errorf("load document: %w", err)
	}
	pages, err := pdfutil.PageCount(data)
	if err != nil {
		logger.Error("inspect failed", "error", err)
		// A broken PDF stays broken on retry.
		return fmt.Errorf("count pages: %w: %w", err, asynq.SkipRetry)
	}
	if err := p.catalog.SetPageCount(ctx, payload.BookID, pages); err != nil {
		logger.Error("inspect failed", "error", err)
		return fmt.Errorf("store page count: %w", err)
	}
	logger.Info("book inspected", "total_pages", pages)
	return nil
}

func (p *Processor) handleRescale(ctx context.Context, task *asynq.Task) error {
	var payload queue.RescalePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	base := model.FirstPage(payload.BookID).WithPage(payload.Page)
	logger := p.logger.With("task", task.Type(), "target", base.String())

	src, _, err := p.blobs.GetPreview(ctx, base.ObjectKey())
	if err != nil {
		logger.Error("rescale failed", "error", err)
		return fmt.Errorf("load page image: %w", err)
	}
	for _, scale := range model.Scales {
		if scale == model.ScaleNormal {
			continue
		}
		out, err := imaging.Rescale(src, scale)
		if err != nil {
			logger.Error("rescale failed", "scale", scale.String(), "error", err)
			return fmt.Errorf("rescale to %s: %w: %w", scale, err, asynq.SkipRetry)
		}
		target := base.WithScale(scale)
		if err := p.blobs.PutPreview(ctx, target.ObjectKey(), out, imaging.ContentType); err != nil {
			logger.Error("rescale failed", "scale", scale.String(), "error", err)
			return fmt.Errorf("store %s: %w", target, err)
		}
		metrics.Rescales.Inc()
	}
	logger.Info("page rescaled")
	return nil
}
