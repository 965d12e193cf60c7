package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// InspectBookTask is scheduled each time a PDF is uploaded.
	InspectBookTask = "book:inspect"
	// RescalePreviewTask is scheduled each time a page image is uploaded.
	RescalePreviewTask = "preview:rescale"

	maxRetry = 5
)

// InspectPayload tells the worker which stored document to count pages of.
type InspectPayload struct {
	BookID    string `json:"book_id"`
	ObjectKey string `json:"object_key"`
}

// RescalePayload identifies the normal-scale page image to derive variants from.
type RescalePayload struct {
	BookID string `json:"book_id"`
	Page   int    `json:"page"`
}

// Enqueuer wraps an asynq client.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueInspect enqueues a page count job.
func (e *Enqueuer) EnqueueInspect(ctx context.Context, payload InspectPayload) error {
	return e.enqueue(ctx, InspectBookTask, payload)
}

// EnqueueRescale enqueues a preview rescale job.
func (e *Enqueuer) EnqueueRescale(ctx context.Context, payload RescalePayload) error {
	return e.enqueue(ctx, RescalePreviewTask, payload)
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, payload any) error {
	task, err := NewTask(taskType, payload)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry)); err != nil {
		return fmt.Errorf("enqueue %s task: %w", taskType, err)
	}
	return nil
}

// NewTask serializes payload into a task of the given type.
func NewTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}
