package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client sends requests to one base URL.
type Client struct {
	baseURL    string
	service    string
	httpClient *http.Client
	header     http.Header
	metrics    *instrumentation.Metrics
}

// Options configures New.
type Options struct {
	BaseURL string
	// Service names the upstream in metrics and spans.
	Service    string
	HTTPClient *http.Client
	// Header is added to every request.
	Header  http.Header
	Metrics *instrumentation.Metrics
}

// New creates a Client. A nil HTTPClient uses a client with a 30s timeout.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		service:    opts.Service,
		httpClient: hc,
		header:     opts.Header.Clone(),
		metrics:    opts.Metrics,
	}
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Operation labels the call in metrics, e.g. "refresh".
	Operation string
	Bearer    string
	Header    http.Header

	// JSON is encoded as the body when set. Body and ContentType are used
	// otherwise.
	JSON        any
	Body        io.Reader
	ContentType string
}

// DoJSON sends req and decodes a 2xx JSON response into out. A nil out
// discards the body.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", c.service, req.Operation, err)
	}
	return nil
}

// Do sends req and returns the response when the status is 2xx. The caller
// closes the body.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	ctx, span := instrumentation.StartUpstreamSpan(ctx, c.service, req.Operation,
		attribute.String("http.method", req.Method),
		attribute.String("http.route", req.Path))
	start := time.Now()

	resp, err := c.send(ctx, req)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordUpstreamCall(ctx, c.service, req.Operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	body := req.Body
	contentType := req.ContentType
	if req.JSON != nil {
		buf, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", req.Operation, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.URL(req.Path, req.Query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", req.Operation, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s request failed: %w", c.service, req.Operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}
	return resp, nil
}
