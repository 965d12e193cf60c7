package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ShelfView/internal/model"
	"github.com/dharsanguruparan/ShelfView/internal/pdf/pdftest"
	"github.com/dharsanguruparan/ShelfView/internal/queue"
	"github.com/dharsanguruparan/ShelfView/internal/storage"
)

func newTask(t *testing.T, taskType string, payload any) *asynq.Task {
	t.Helper()
	task, err := queue.NewTask(taskType, payload)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	return task
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	catalog := storage.NewMemoryCatalog(model.Book{ID: "b1", Title: "Go", ObjectKey: "b1.pdf"})
	blobs := storage.NewMemoryBlobs()
	if err := blobs.PutDocument(ctx, "b1.pdf", pdftest.Minimal(7), "application/pdf"); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	mux := NewProcessor(catalog, blobs, nil).Handler()

	task := newTask(t, queue.InspectBookTask, queue.InspectPayload{BookID: "b1", ObjectKey: "b1.pdf"})
	if err := mux.ProcessTask(ctx, task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	book, _ := catalog.Get(ctx, "b1")
	if book.PageCount != 7 {
		t.Errorf("PageCount = %d, want 7", book.PageCount)
	}
}

func TestInspectBrokenDocumentSkipsRetry(t *testing.T) {
	ctx := context.Background()
	catalog := storage.NewMemoryCatalog(model.Book{ID: "b1"})
	blobs := storage.NewMemoryBlobs()
	_ = blobs.PutDocument(ctx, "b1.pdf", []byte("not a pdf"), "application/pdf")
	mux := NewProcessor(catalog, blobs, nil).Handler()

	err := mux.ProcessTask(ctx, newTask(t, queue.InspectBookTask, queue.InspectPayload{BookID: "b1", ObjectKey: "b1.pdf"}))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestRescale(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryBlobs()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 20, 30))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	base := model.FirstPage("b1").WithPage(2)
	_ = blobs.PutPreview(ctx, base.ObjectKey(), buf.Bytes(), "image/png")
	mux := NewProcessor(storage.NewMemoryCatalog(), blobs, nil).Handler()

	if err := mux.ProcessTask(ctx, newTask(t, queue.RescalePreviewTask, queue.RescalePayload{BookID: "b1", Page: 2})); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	data, contentType, err := blobs.GetPreview(ctx, base.WithScale(model.ScaleZoomed).ObjectKey())
	if err != nil {
		t.Fatalf("zoomed variant missing: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if contentType != "image/png" || img.Bounds().Dx() != 30 || img.Bounds().Dy() != 45 {
		t.Errorf("unexpected variant %s %v", contentType, img.Bounds())
	}
}

func TestRescaleMissingSource(t *testing.T) {
	mux := NewProcessor(storage.NewMemoryCatalog(), storage.NewMemoryBlobs(), nil).Handler()
	err := mux.ProcessTask(context.Background(), newTask(t, queue.RescalePreviewTask, queue.RescalePayload{BookID: "b1"}))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
