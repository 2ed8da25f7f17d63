// Package strapi is a REST client for the headless CMS that stores
// specification trees (Strapi v5 conventions: /api/<collection>,
// {"data": ...} envelopes, documentId, bearer token).
package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 100
	// maxReadElapsed bounds the total time spent retrying one GET.
	maxReadElapsed = 20 * time.Second
)

// Client talks to the CMS REST API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Log        zerolog.Logger

	// NewBackOff returns a fresh policy for retrying reads. BackOff values
	// are stateful, so every request gets its own.
	NewBackOff func() backoff.BackOff
}

// NewClient creates a client for the CMS at baseURL (e.g. http://localhost:1337).
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Log:        zerolog.Nop(),
		NewBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = maxReadElapsed
	return bo
}

// do sends a single request and returns the response body. Non-2xx responses
// come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.Log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("cms request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(method, path, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// get performs a GET, retrying transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var out []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		body, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err == nil {
			out = body
			return nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return backoff.Permanent(err)
		}
		c.Log.Debug().Err(err).Int("attempt", attempt).Str("path", path).Msg("retrying cms read")
		return err
	}, backoff.WithContext(c.NewBackOff(), ctx))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// send performs a write. Writes are never retried.
func (c *Client) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.do(ctx, method, path, nil, body)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// transport-level failure
	return true
}

// listAll fetches every page of a collection.
func (c *Client) listAll(ctx context.Context, collection string, query url.Values) ([]entity, error) {
	var all []entity
	page := 1
	for {
		q := cloneValues(query)
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(DefaultPageSize))

		body, err := c.get(ctx, "/api/"+collection, q)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", collection, err)
		}
		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse %s page %d: %w", collection, page, err)
		}
		all = append(all, resp.Data...)

		if page >= resp.Meta.Pagination.PageCount || len(resp.Data) == 0 {
			break
		}
		page++
	}
	return all, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
