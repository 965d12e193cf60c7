// Package client talks to the ShelfView catalog and preview service.
package client

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// ErrMalformed reports a response whose body could not be decoded.
var ErrMalformed = errors.New("malformed response")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected response code %d (%s): %s", e.Code, e.Status, e.Body)
	}
	return fmt.Sprintf("unexpected response code %d (%s)", e.Code, e.Status)
}

// NotFound reports whether the server answered 404.
func (e *StatusError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func New(funcs ...OptionFunc) *Client {
	opts := NewOptions(funcs...)
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
	}
}

// NewFromURL builds a client for the server at rawURL.
func NewFromURL(rawURL string, funcs ...OptionFunc) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse server url %q", rawURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("server url %q must be absolute", rawURL)
	}
	return New(append([]OptionFunc{WithBaseURL(u)}, funcs...)...), nil
}
