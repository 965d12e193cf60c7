// Package processing runs background jobs inside the server process when no
// queue is configured. It executes the same task handlers as the worker
// binary, without persistence or retries.
package processing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ShelfView/internal/queue"
)

// Pool feeds tasks to a fixed number of goroutines.
type Pool struct {
	handler asynq.Handler
	tasks   chan *asynq.Task
	workers int
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// New builds a Pool whose queue capacity is tied to the worker count.
func New(handler asynq.Handler, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		handler: handler,
		tasks:   make(chan *asynq.Task, workers*4),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until they have.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

// EnqueueInspect schedules a page count job.
func (p *Pool) EnqueueInspect(_ context.Context, payload queue.InspectPayload) error {
	return p.submit(queue.InspectBookTask, payload)
}

// EnqueueRescale schedules a preview rescale job.
func (p *Pool) EnqueueRescale(_ context.Context, payload queue.RescalePayload) error {
	return p.submit(queue.RescalePreviewTask, payload)
}

func (p *Pool) submit(taskType string, payload any) error {
	task, err := queue.NewTask(taskType, payload)
	if err != nil {
		return err
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		// Dropped work is recomputed on demand by the API.
		p.logger.Warn("processing queue full, dropping task", "task", taskType)
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			if err := p.handler.ProcessTask(ctx, task); err != nil {
				p.logger.Error("task failed", "task", task.Type(), "error", err)
			}
		}
	}
}
