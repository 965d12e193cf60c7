package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/dharsanguruparan/ShelfView/internal/handle"
	"github.com/dharsanguruparan/ShelfView/internal/model"
	"github.com/dharsanguruparan/ShelfView/internal/preview"
)

var pagePNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type pageReply struct {
	page preview.Page
	err  error
}

type pageCall struct {
	target model.PreviewTarget
	reply  chan pageReply
}

func (c *pageCall) succeed() {
	c.reply <- pageReply{page: preview.Page{Target: c.target, Data: pagePNG, ContentType: "image/png"}}
}

func (c *pageCall) fail(kind preview.ErrorKind) {
	c.reply <- pageReply{err: &preview.Error{Kind: kind, Target: c.target, Err: errors.New("boom")}}
}

type countReply struct {
	n   int
	err error
}

type countCall struct {
	documentID string
	reply      chan countReply
}

// gatedFetcher blocks every request until the test answers it.
type gatedFetcher struct {
	pages  chan *pageCall
	counts chan *countCall
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		pages:  make(chan *pageCall, 16),
		counts: make(chan *countCall, 16),
	}
}

func (f *gatedFetcher) FetchPage(ctx context.Context, target model.PreviewTarget) (preview.Page, error) {
	call := &pageCall{target: target, reply: make(chan pageReply, 1)}
	f.pages <- call
	select {
	case r := <-call.reply:
		return r.page, r.err
	case <-ctx.Done():
		return preview.Page{}, ctx.Err()
	}
}

func (f *gatedFetcher) FetchPageCount(ctx context.Context, documentID string) (int, error) {
	call := &countCall{documentID: documentID, reply: make(chan countReply, 1)}
	f.counts <- call
	select {
	case r := <-call.reply:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *gatedFetcher) nextPage(t *testing.T) *pageCall {
	t.Helper()
	select {
	case c := <-f.pages:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no page fetch issued")
		return nil
	}
}

// nextPages collects n page fetches keyed by page. Fetch goroutines reach the
// fetcher in no particular order.
func (f *gatedFetcher) nextPages(t *testing.T, n int) map[int]*pageCall {
	t.Helper()
	calls := make(map[int]*pageCall, n)
	for i := 0; i < n; i++ {
		c := f.nextPage(t)
		if _, dup := calls[c.target.Page]; dup {
			t.Fatalf("page %d fetched twice", c.target.Page)
		}
		calls[c.target.Page] = c
	}
	return calls
}

func (f *gatedFetcher) nextCount(t *testing.T) *countCall {
	t.Helper()
	select {
	case c := <-f.counts:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no page count fetch issued")
		return nil
	}
}

func (f *gatedFetcher) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.pages:
		t.Fatalf("unexpected page fetch for %s", c.target)
	case c := <-f.counts:
		t.Fatalf("unexpected page count fetch for %s", c.documentID)
	default:
	}
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *gatedFetcher, *handle.Registry) {
	t.Helper()
	reg, err := handle.NewRegistry(afero.NewMemMapFs(), "/spool")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	f := newGatedFetcher()
	return New(f, reg, opts...), f, reg
}

// openReady opens doc and answers the initial requests so the session is Ready
// on page 0.
func openReady(t *testing.T, c *Controller, f *gatedFetcher, doc model.Book, total int) {
	t.Helper()
	c.Open(doc)
	if doc.PageCount == 0 {
		f.nextCount(t).reply <- countReply{n: total}
	}
	f.nextPage(t).succeed()
	c.Wait()
	if s := c.Snapshot(); s.Status != Ready {
		t.Fatalf("status = %s, want ready", s.Status)
	}
}

func waitFor(t *testing.T, c *Controller, what string, cond func(Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(c.Snapshot()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertLive(t *testing.T, reg *handle.Registry, want int64) {
	t.Helper()
	if got := reg.Stats().Live(); got != want {
		t.Fatalf("live handles = %d, want %d", got, want)
	}
}

func target(page int, scale model.Scale) model.PreviewTarget {
	return model.PreviewTarget{DocumentID: "x", Page: page, Scale: scale}
}

func TestBrowseTenPageDocument(t *testing.T) {
	c, f, reg := newTestController(t)
	doc := model.Book{ID: "x", Title: "Ten Pages"}

	c.Open(doc)
	s := c.Snapshot()
	if s.Status != Opening || !s.Pending || s.Handle != nil {
		t.Fatalf("after open: %+v", s)
	}
	count := f.nextCount(t)
	first := f.nextPage(t)
	if first.target != target(0, model.ScaleNormal) {
		t.Fatalf("first target = %s", first.target)
	}
	count.reply <- countReply{n: 10}
	first.succeed()
	c.Wait()

	s = c.Snapshot()
	if s.Status != Ready || s.Target != target(0, model.ScaleNormal) || !s.TotalPagesKnown || s.TotalPages != 10 {
		t.Fatalf("after first page: %+v", s)
	}
	if s.Handle == nil || s.Pending || s.LastError != nil {
		t.Fatalf("after first page: %+v", s)
	}
	assertLive(t, reg, 1)

	if !c.Navigate(1) {
		t.Fatalf("navigate forward rejected")
	}
	if s := c.Snapshot(); !s.Pending || s.Target.Page != 0 || s.PendingTarget.Page != 1 {
		t.Fatalf("pending navigation not reflected: %+v", s)
	}
	f.nextPage(t).succeed()
	c.Wait()
	if s := c.Snapshot(); s.Target != target(1, model.ScaleNormal) || s.Pending {
		t.Fatalf("after navigate: %+v", s)
	}
	assertLive(t, reg, 1)

	if !c.Navigate(-1) {
		t.Fatalf("navigate back rejected")
	}
	f.nextPage(t).succeed()
	c.Wait()

	before := c.Snapshot()
	if c.Navigate(-1) {
		t.Fatalf("navigate before page 0 accepted")
	}
	f.assertIdle(t)
	if after := c.Snapshot(); *after.Handle != *before.Handle || after.Target != before.Target {
		t.Fatalf("no-op navigation changed state")
	}

	if !c.Rescale() {
		t.Fatalf("rescale rejected")
	}
	zoom := f.nextPage(t)
	if zoom.target != target(0, model.ScaleZoomed) {
		t.Fatalf("rescale target = %s", zoom.target)
	}
	zoom.fail(preview.ServiceError)
	c.Wait()
	s = c.Snapshot()
	if s.Status != Ready || s.Target != target(0, model.ScaleNormal) || *s.Handle != *before.Handle {
		t.Fatalf("failed rescale replaced the page: %+v", s)
	}
	if !errors.Is(s.LastError, preview.ErrPreviewUnavailable) {
		t.Fatalf("LastError = %v", s.LastError)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s := c.Snapshot(); s.Status != Closed || s.Handle != nil {
		t.Fatalf("after close: %+v", s)
	}
	assertLive(t, reg, 0)
	if stats := reg.Stats(); stats.Acquired != stats.Released {
		t.Fatalf("unbalanced stats %+v", stats)
	}
}

func TestNavigateStopsAtLastPage(t *testing.T) {
	c, f, _ := newTestController(t)
	openReady(t, c, f, model.Book{ID: "x", PageCount: 2}, 0)

	if !c.Navigate(1) {
		t.Fatalf("navigate to page 1 rejected")
	}
	f.nextPage(t).succeed()
	c.Wait()

	if c.Navigate(1) {
		t.Fatalf("navigate past last page accepted")
	}
	f.assertIdle(t)
	if s := c.Snapshot(); s.Target.Page != 1 || s.TotalPages != 2 {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestNavigateRejectsInvalidInput(t *testing.T) {
	c, f, _ := newTestController(t)
	if c.Navigate(1) || c.Rescale() {
		t.Fatalf("actions accepted on a closed session")
	}
	openReady(t, c, f, model.Book{ID: "x"}, 5)
	for _, dir := range []int{0, 2, -3} {
		if c.Navigate(dir) {
			t.Errorf("direction %d accepted", dir)
		}
	}
	f.assertIdle(t)
}

func TestNavigateTwiceAppliesOnlyLatest(t *testing.T) {
	tests := []struct {
		name        string
		latestFirst bool
	}{
		{name: "responses in order"},
		{name: "responses reversed", latestFirst: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f, reg := newTestController(t)
			openReady(t, c, f, model.Book{ID: "x"}, 10)

			if !c.Navigate(1) || !c.Navigate(1) {
				t.Fatalf("navigation rejected")
			}
			calls := f.nextPages(t, 2)
			first, second := calls[1], calls[2]
			if first == nil || second == nil {
				t.Fatalf("expected fetches for pages 1 and 2, got %v", calls)
			}

			if tt.latestFirst {
				second.succeed()
				waitFor(t, c, "second page", func(s Snapshot) bool { return s.Target.Page == 2 })
				first.succeed()
			} else {
				first.succeed()
				second.succeed()
			}
			c.Wait()

			s := c.Snapshot()
			if s.Target != target(2, model.ScaleNormal) || s.Pending {
				t.Fatalf("unexpected state %+v", s)
			}
			if got := reg.Stats().Acquired; got != 2 {
				t.Fatalf("acquired = %d, want 2", got)
			}
			assertLive(t, reg, 1)
		})
	}
}

func TestFailedNavigationKeepsPage(t *testing.T) {
	c, f, reg := newTestController(t)
	openReady(t, c, f, model.Book{ID: "x"}, 10)
	before := c.Snapshot()

	c.Navigate(1)
	f.nextPage(t).fail(preview.Timeout)
	c.Wait()

	s := c.Snapshot()
	if s.Target != before.Target || *s.Handle != *before.Handle || s.Status != Ready || s.Pending {
		t.Fatalf("failed navigation changed the page: %+v", s)
	}
	if preview.KindOf(s.LastError) != preview.Timeout {
		t.Fatalf("LastError = %v", s.LastError)
	}
	assertLive(t, reg, 1)

	if !c.Retry() {
		t.Fatalf("retry rejected")
	}
	retry := f.nextPage(t)
	if retry.target.Page != 1 {
		t.Fatalf("retry target = %s", retry.target)
	}
	retry.succeed()
	c.Wait()
	if s := c.Snapshot(); s.Target.Page != 1 || s.LastError != nil {
		t.Fatalf("after retry: %+v", s)
	}
}

func TestDismissError(t *testing.T) {
	c, f, _ := newTestController(t)
	openReady(t, c, f, model.Book{ID: "x"}, 10)
	c.Navigate(1)
	f.nextPage(t).fail(preview.NetworkFailure)
	c.Wait()

	c.DismissError()
	if s := c.Snapshot(); s.LastError != nil || s.Target.Page != 0 {
		t.Fatalf("after dismiss: %+v", s)
	}
	if c.Retry() {
		t.Fatalf("retry accepted after the error was dismissed")
	}
}

func TestFailedOpenAndRetry(t *testing.T) {
	c, f, reg := newTestController(t)
	c.Open(model.Book{ID: "x"})
	f.nextCount(t).reply <- countReply{err: errors.New("count down")}
	f.nextPage(t).fail(preview.MalformedResponse)
	c.Wait()

	s := c.Snapshot()
	if s.Status != Failed || s.Handle != nil || s.LastError == nil {
		t.Fatalf("after failed open: %+v", s)
	}
	assertLive(t, reg, 0)
	if c.Navigate(1) {
		t.Fatalf("navigate accepted on a failed session")
	}

	if !c.Retry() {
		t.Fatalf("retry rejected")
	}
	if s := c.Snapshot(); s.Status != Opening || !s.Pending {
		t.Fatalf("after retry: %+v", s)
	}
	// The page count is requested again because the first attempt failed.
	f.nextCount(t).reply <- countReply{n: 3}
	f.nextPage(t).succeed()
	c.Wait()
	if s := c.Snapshot(); s.Status != Ready || s.TotalPages != 3 {
		t.Fatalf("after successful retry: %+v", s)
	}
	assertLive(t, reg, 1)
}

func TestPageCountFailureIsNotSurfaced(t *testing.T) {
	c, f, _ := newTestController(t)
	c.Open(model.Book{ID: "x"})
	f.nextCount(t).reply <- countReply{err: &preview.Error{Kind: preview.ServiceError, Err: errors.New("500")}}
	f.nextPage(t).succeed()
	c.Wait()

	s := c.Snapshot()
	if s.Status != Ready || s.LastError != nil || s.TotalPagesKnown {
		t.Fatalf("unexpected state %+v", s)
	}
	if !c.Navigate(1) {
		t.Fatalf("forward navigation rejected with unknown page count")
	}
}

func TestPageCountClampsOutOfRangeRequest(t *testing.T) {
	c, f, reg := newTestController(t)
	c.Open(model.Book{ID: "x"})
	count := f.nextCount(t)
	f.nextPage(t).succeed()
	waitFor(t, c, "first page", func(s Snapshot) bool { return s.Status == Ready })

	c.Navigate(1)
	c.Navigate(1)
	superseded := f.nextPages(t, 2)

	count.reply <- countReply{n: 2}
	last := f.nextPage(t)
	if last.target != target(1, model.ScaleNormal) {
		t.Fatalf("clamped target = %s, want %s", last.target, target(1, model.ScaleNormal))
	}
	if s := c.Snapshot(); !s.Pending || s.PendingTarget != last.target || s.TotalPages != 2 {
		t.Fatalf("after page count: %+v", s)
	}

	for _, call := range superseded {
		call.succeed()
	}
	last.succeed()
	c.Wait()
	s := c.Snapshot()
	if s.Target != target(1, model.ScaleNormal) || s.Pending || s.LastError != nil {
		t.Fatalf("unexpected state %+v", s)
	}
	if got := reg.Stats().Acquired; got != 2 {
		t.Fatalf("acquired = %d, want 2", got)
	}
	assertLive(t, reg, 1)
}

func TestPageCountDropsRequestBeyondDisplayedLastPage(t *testing.T) {
	c, f, _ := newTestController(t)
	c.Open(model.Book{ID: "x"})
	count := f.nextCount(t)
	f.nextPage(t).succeed()
	waitFor(t, c, "first page", func(s Snapshot) bool { return s.Status == Ready })

	c.Navigate(1)
	beyond := f.nextPage(t)

	count.reply <- countReply{n: 1}
	waitFor(t, c, "page count", func(s Snapshot) bool { return s.TotalPagesKnown })
	if s := c.Snapshot(); s.Pending || s.TotalPages != 1 {
		t.Fatalf("request beyond the only page still pending: %+v", s)
	}

	beyond.succeed()
	c.Wait()
	f.assertIdle(t)
	if s := c.Snapshot(); s.Target != target(0, model.ScaleNormal) {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestFailedReopenHoldsNoHandle(t *testing.T) {
	c, f, reg := newTestController(t)
	openReady(t, c, f, model.Book{ID: "x"}, 4)
	assertLive(t, reg, 1)

	c.Open(model.Book{ID: "y", PageCount: 2})
	f.nextPage(t).fail(preview.NetworkFailure)
	c.Wait()

	s := c.Snapshot()
	if s.Status != Failed || s.Handle != nil {
		t.Fatalf("after failed reopen: %+v", s)
	}
	assertLive(t, reg, 0)
	if stats := reg.Stats(); stats.Acquired != stats.Released {
		t.Fatalf("unbalanced stats %+v", stats)
	}
}

func TestCloseWithFetchInFlight(t *testing.T) {
	c, f, reg := newTestController(t)
	c.Open(model.Book{ID: "x"})
	count := f.nextCount(t)
	page := f.nextPage(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	count.reply <- countReply{n: 4}
	page.succeed()
	c.Wait()

	s := c.Snapshot()
	if s.Status != Closed || s.Handle != nil || s.TotalPagesKnown {
		t.Fatalf("late response leaked into closed session: %+v", s)
	}
	assertLive(t, reg, 0)
	if got := reg.Stats().Acquired; got != 0 {
		t.Fatalf("acquired = %d, want 0", got)
	}
}

func TestOpenReplacesPreviousSession(t *testing.T) {
	c, f, reg := newTestController(t)
	openReady(t, c, f, model.Book{ID: "x"}, 10)
	c.Navigate(1)
	stale := f.nextPage(t)

	c.Open(model.Book{ID: "y", PageCount: 3})
	s := c.Snapshot()
	if s.Status != Opening || s.Handle != nil || s.Document.ID != "y" {
		t.Fatalf("after reopen: %+v", s)
	}
	assertLive(t, reg, 0)

	stale.succeed()
	next := f.nextPage(t)
	if next.target.DocumentID != "y" {
		t.Fatalf("target = %s", next.target)
	}
	next.succeed()
	c.Wait()
	if s := c.Snapshot(); s.Status != Ready || s.Target.DocumentID != "y" {
		t.Fatalf("unexpected state %+v", s)
	}
	assertLive(t, reg, 1)
}

type panicFetcher struct{}

func (panicFetcher) FetchPage(context.Context, model.PreviewTarget) (preview.Page, error) {
	panic("decoder exploded")
}

func (panicFetcher) FetchPageCount(context.Context, string) (int, error) {
	panic("decoder exploded")
}

func TestFetchPanicFailsSession(t *testing.T) {
	reg, err := handle.NewRegistry(afero.NewMemMapFs(), "/spool")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	c := New(panicFetcher{}, reg)
	c.Open(model.Book{ID: "x"})
	c.Wait()

	s := c.Snapshot()
	if s.Status != Failed || preview.KindOf(s.LastError) != preview.MalformedResponse {
		t.Fatalf("unexpected state %+v", s)
	}
}

type recordingDownloader struct {
	saved []string
}

func (d *recordingDownloader) Save(_ context.Context, book model.Book) (string, error) {
	d.saved = append(d.saved, book.ID)
	return "/downloads/" + book.FileName(), nil
}

func TestDownload(t *testing.T) {
	d := &recordingDownloader{}
	c, f, _ := newTestController(t, WithDownloader(d))
	if _, err := c.Download(context.Background()); err == nil {
		t.Fatalf("download accepted without an open document")
	}

	openReady(t, c, f, model.Book{ID: "x", Title: "Go"}, 1)
	path, err := c.Download(context.Background())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != "/downloads/Go.pdf" || len(d.saved) != 1 {
		t.Fatalf("path = %q, saved = %v", path, d.saved)
	}

	bare, f2, _ := newTestController(t)
	openReady(t, bare, f2, model.Book{ID: "x"}, 1)
	if _, err := bare.Download(context.Background()); !errors.Is(err, ErrNoDownloader) {
		t.Fatalf("err = %v", err)
	}
}

func TestChangesSignalled(t *testing.T) {
	c, f, _ := newTestController(t)
	c.Open(model.Book{ID: "x", PageCount: 1})
	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatalf("no change signalled on open")
	}
	f.nextPage(t).succeed()
	select {
	case <-c.Changes():
	case <-time.After(2 * time.Second):
		t.Fatalf("no change signalled on page arrival")
	}
	c.Wait()
}
