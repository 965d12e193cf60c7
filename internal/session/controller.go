package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/dharsanguruparan/ShelfView/internal/handle"
	"github.com/dharsanguruparan/ShelfView/internal/metrics"
	"github.com/dharsanguruparan/ShelfView/internal/model"
	"github.com/dharsanguruparan/ShelfView/internal/preview"
)

// ErrNoDownloader is returned by Download when the controller was built
// without a Downloader.
var ErrNoDownloader = errors.New("download not configured")

// Fetcher performs the remote preview requests. *preview.Fetcher implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, target model.PreviewTarget) (preview.Page, error)
	FetchPageCount(ctx context.Context, documentID string) (int, error)
}

// Downloader saves a full document locally and returns where it was written.
type Downloader interface {
	Save(ctx context.Context, book model.Book) (string, error)
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithDownloader(d Downloader) Option {
	return func(c *Controller) {
		c.downloader = d
	}
}

// WithContext sets the parent of every fetch context. Cancelling it aborts
// all outstanding fetches.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.parent = ctx
	}
}

// Controller serializes user actions and fetch results against one Session.
// Actions return immediately; fetches complete on their own goroutines and are
// applied only if they are still the latest request of the current session.
type Controller struct {
	mu      sync.Mutex
	sess    *Session
	genCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	changes chan struct{}

	fetcher    Fetcher
	downloader Downloader
	logger     *slog.Logger
	parent     context.Context
}

func New(fetcher Fetcher, registry *handle.Registry, opts ...Option) *Controller {
	c := &Controller{
		sess:    newSession(registry.NewSlot()),
		changes: make(chan struct{}, 1),
		fetcher: fetcher,
		logger:  slog.Default(),
		parent:  context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.genCtx, c.cancel = context.WithCancel(c.parent)
	return c
}

// Open starts a preview of doc at page 0 and the normal scale. An open session
// is closed first.
func (c *Controller) Open(doc model.Book) {
	c.mu.Lock()
	c.cancel()
	req, err := c.sess.open(doc)
	c.genCtx, c.cancel = context.WithCancel(c.parent)
	ctx := c.genCtx
	count := c.sess.needsCount()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("release previous preview", "error", err)
	}
	c.logger.Info("open preview", "book_id", doc.ID, "title", doc.Title)
	c.fetchPage(ctx, req)
	if count {
		c.fetchPageCount(ctx, req.generation, doc.ID)
	}
	c.notify()
}

// Navigate moves one page forward (+1) or backward (-1). It returns false
// when the action is a no-op: the session is not Ready, the direction is
// invalid, or the page would leave the document.
func (c *Controller) Navigate(direction int) bool {
	c.mu.Lock()
	req, ok := c.sess.navigate(direction)
	ctx := c.genCtx
	c.mu.Unlock()
	return c.dispatch(ctx, req, ok)
}

// Rescale toggles between the normal and zoomed scale, keeping the page.
func (c *Controller) Rescale() bool {
	c.mu.Lock()
	req, ok := c.sess.rescale()
	ctx := c.genCtx
	c.mu.Unlock()
	return c.dispatch(ctx, req, ok)
}

// Retry reissues the request that last failed: the first page of a Failed
// session, or the target of a failed navigation while Ready.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	req, ok := c.sess.retryRequest()
	ctx := c.genCtx
	count := ok && c.sess.needsCount()
	doc := c.sess.doc.ID
	c.mu.Unlock()

	if count {
		c.fetchPageCount(ctx, req.generation, doc)
	}
	return c.dispatch(ctx, req, ok)
}

// DismissError clears the error shown over a Ready session.
func (c *Controller) DismissError() {
	c.mu.Lock()
	changed := c.sess.dismissError()
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Close releases the live handle and discards all session state. Fetches
// still in flight are cancelled and their results ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.cancel()
	err := c.sess.close()
	c.genCtx, c.cancel = context.WithCancel(c.parent)
	c.mu.Unlock()

	c.notify()
	if err != nil {
		return fmt.Errorf("close preview: %w", err)
	}
	return nil
}

// Download saves the full document of the open session.
func (c *Controller) Download(ctx context.Context) (string, error) {
	if c.downloader == nil {
		return "", ErrNoDownloader
	}
	c.mu.Lock()
	doc := c.sess.doc
	status := c.sess.status
	c.mu.Unlock()
	if status == Closed {
		return "", errors.New("no document open")
	}
	return c.downloader.Save(ctx, doc)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.snapshot()
}

// Changes delivers a signal after each observable state change. Signals are
// coalesced; readers should call Snapshot after receiving one.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Wait blocks until every fetch started so far has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) dispatch(ctx context.Context, req *request, ok bool) bool {
	if !ok {
		metrics.PreviewResponses.WithLabelValues(metrics.OutcomeRejected).Inc()
		return false
	}
	c.fetchPage(ctx, req)
	c.notify()
	return true
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) fetchPage(ctx context.Context, req *request) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		page, err := c.safeFetchPage(ctx, req.target)

		c.mu.Lock()
		var applied bool
		var acquireErr error
		if err != nil {
			applied = c.sess.applyFailure(req, err)
		} else {
			applied, acquireErr = c.sess.applyPage(req, page.Data, page.ContentType)
		}
		c.mu.Unlock()

		logger := c.logger.With("target", req.target.String())
		switch {
		case !applied:
			metrics.PreviewResponses.WithLabelValues(metrics.OutcomeStale).Inc()
			logger.Debug("discard stale preview response")
			return
		case err != nil:
			metrics.PreviewResponses.WithLabelValues(metrics.OutcomeFailed).Inc()
			logger.Warn("preview fetch failed", "kind", preview.KindOf(err).String(), "error", err)
		case acquireErr != nil:
			metrics.PreviewResponses.WithLabelValues(metrics.OutcomeFailed).Inc()
			logger.Error("materialize preview", "error", acquireErr)
		default:
			metrics.PreviewResponses.WithLabelValues(metrics.OutcomeApplied).Inc()
			logger.Debug("preview applied", "bytes", len(page.Data))
		}
		c.notify()
	}()
}

func (c *Controller) fetchPageCount(ctx context.Context, generation uint64, documentID string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		n, err := c.safeFetchPageCount(ctx, documentID)

		c.mu.Lock()
		var (
			applied bool
			clamped *request
		)
		if err != nil {
			c.sess.pageCountFailed(generation)
		} else {
			applied, clamped = c.sess.applyPageCount(generation, n)
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn("page count unavailable", "book_id", documentID, "error", err)
			return
		}
		if !applied {
			return
		}
		c.logger.Debug("page count known", "book_id", documentID, "total_pages", n)
		if clamped != nil {
			c.logger.Debug("pending page beyond document end", "target", clamped.target.String())
			c.fetchPage(ctx, clamped)
		}
		c.notify()
	}()
}

func (c *Controller) safeFetchPage(ctx context.Context, target model.PreviewTarget) (page preview.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &preview.Error{Kind: preview.MalformedResponse, Target: target, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return c.fetcher.FetchPage(ctx, target)
}

func (c *Controller) safeFetchPageCount(ctx context.Context, documentID string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &preview.Error{Kind: preview.MalformedResponse, Target: model.FirstPage(documentID), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return c.fetcher.FetchPageCount(ctx, documentID)
}
