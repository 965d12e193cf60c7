package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dharsanguruparan/ShelfView/internal/client"
	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// Source is the remote preview service. *client.Client implements it.
type Source interface {
	PreviewPage(ctx context.Context, target model.PreviewTarget) (*client.Page, error)
	PageCount(ctx context.Context, documentID string) (int, error)
}

// Page is a validated page image ready to be materialized.
type Page struct {
	Target      model.PreviewTarget
	Data        []byte
	ContentType string
}

// Fetcher performs preview requests with a bounded timeout. It never holds
// session state.
type Fetcher struct {
	src     Source
	timeout time.Duration
}

// NewFetcher wraps src. A non-positive timeout disables the bound.
func NewFetcher(src Source, timeout time.Duration) *Fetcher {
	return &Fetcher{src: src, timeout: timeout}
}

// FetchPage requests the rendered image for target.
func (f *Fetcher) FetchPage(ctx context.Context, target model.PreviewTarget) (Page, error) {
	ctx, cancel := f.bound(ctx)
	defer cancel()

	raw, err := f.src.PreviewPage(ctx, target)
	if err != nil {
		return Page{}, classify(ctx, target, err)
	}
	if raw == nil || len(raw.Data) == 0 {
		return Page{}, &Error{Kind: MalformedResponse, Target: target, Err: errors.New("empty page payload")}
	}
	detected := mimetype.Detect(raw.Data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return Page{}, &Error{
			Kind:   MalformedResponse,
			Target: target,
			Err:    fmt.Errorf("expected an image, got %s", detected.String()),
		}
	}
	return Page{Target: target, Data: raw.Data, ContentType: detected.String()}, nil
}

// FetchPageCount requests the total number of pages of documentID.
func (f *Fetcher) FetchPageCount(ctx context.Context, documentID string) (int, error) {
	ctx, cancel := f.bound(ctx)
	defer cancel()

	target := model.FirstPage(documentID)
	n, err := f.src.PageCount(ctx, documentID)
	if err != nil {
		return 0, classify(ctx, target, err)
	}
	if n <= 0 {
		return 0, &Error{Kind: MalformedResponse, Target: target, Err: fmt.Errorf("invalid page count %d", n)}
	}
	return n, nil
}

func (f *Fetcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

func classify(ctx context.Context, target model.PreviewTarget, err error) error {
	var statusErr *client.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: Timeout, Target: target, Err: err}
	case errors.As(err, &statusErr):
		return &Error{Kind: ServiceError, Target: target, Err: err}
	case errors.Is(err, client.ErrMalformed):
		return &Error{Kind: MalformedResponse, Target: target, Err: err}
	default:
		return &Error{Kind: NetworkFailure, Target: target, Err: err}
	}
}
