package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const maxErrorBody = 512

func (c *Client) request(ctx context.Context, method string, path string, query url.Values, result io.Writer) (http.Header, error) {
	u := *c.baseURL
	u.Path = c.baseURL.JoinPath("/api/v1", path).Path
	u.RawQuery = query.Encode()

	slog.DebugContext(ctx, "new client request",
		slog.String("method", method),
		slog.String("path", u.Path),
		slog.String("host", u.Host),
	)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, errors.WithStack(&StatusError{
			Code:   res.StatusCode,
			Status: res.Status,
			Body:   strings.TrimSpace(string(body)),
		})
	}

	if _, err := io.Copy(result, res.Body); err != nil {
		return nil, errors.WithStack(err)
	}

	return res.Header, nil
}

func (c *Client) jsonRequest(ctx context.Context, method string, path string, query url.Values, result any) error {
	var buff bytes.Buffer

	if _, err := c.request(ctx, method, path, query, &buff); err != nil {
		return errors.WithStack(err)
	}

	if err := json.Unmarshal(buff.Bytes(), result); err != nil {
		return errors.Wrapf(ErrMalformed, "decode %s: %v", path, err)
	}

	return nil
}
