package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// Page is the raw payload of a rendered preview page.
type Page struct {
	Data        []byte
	ContentType string
}

// PreviewPage fetches the rendered image of target.
func (c *Client) PreviewPage(ctx context.Context, target model.PreviewTarget) (*Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(target.Page))
	query.Set("scale", target.Scale.String())

	var buff bytes.Buffer
	header, err := c.request(ctx, http.MethodGet, "/books/"+url.PathEscape(target.DocumentID)+"/preview", query, &buff)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Page{Data: buff.Bytes(), ContentType: header.Get("Content-Type")}, nil
}

type pageCountResponse struct {
	TotalPages *int `json:"total_pages"`
}

// PageCount returns the number of pages of a document.
func (c *Client) PageCount(ctx context.Context, documentID string) (int, error) {
	var res pageCountResponse
	if err := c.jsonRequest(ctx, http.MethodGet, "/books/"+url.PathEscape(documentID)+"/page-count", nil, &res); err != nil {
		return 0, errors.WithStack(err)
	}
	if res.TotalPages == nil {
		return 0, errors.Wrap(ErrMalformed, "page count response without total_pages")
	}
	return *res.TotalPages, nil
}

// Download streams the document PDF into w.
func (c *Client) Download(ctx context.Context, documentID string, w io.Writer) error {
	if _, err := c.request(ctx, http.MethodGet, "/books/"+url.PathEscape(documentID)+"/download", nil, w); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
