package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

func (c *Client) ListBooks(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	if err := c.jsonRequest(ctx, http.MethodGet, "/books", nil, &books); err != nil {
		return nil, errors.WithStack(err)
	}
	return books, nil
}

func (c *Client) SearchBooks(ctx context.Context, term string) ([]model.Book, error) {
	query := url.Values{}
	query.Set("q", term)

	var books []model.Book
	if err := c.jsonRequest(ctx, http.MethodGet, "/books/search", query, &books); err != nil {
		return nil, errors.WithStack(err)
	}
	return books, nil
}

func (c *Client) Book(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	if err := c.jsonRequest(ctx, http.MethodGet, "/books/"+url.PathEscape(id), nil, &book); err != nil {
		return nil, errors.WithStack(err)
	}
	return &book, nil
}
