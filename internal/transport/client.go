// Package transport implements the HTTP clients the SDK uses to talk to the
// push platform backend: a conventional HTTP/1.1 client and a multiplexed
// HTTP/2 session client. Both attach the shared header set, bearer
// credentials from a caller-supplied token source, and a fixed per-request
// timeout.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the fixed deadline applied to every outbound request,
// single or batch.
const DefaultTimeout = 15 * time.Second

// Request describes one outbound call. Bodies are marshaled to JSON unless
// already provided as raw bytes.
type Request struct {
	Method string
	URL    string
	// Body is JSON-marshaled when non-nil. []byte bodies are sent verbatim.
	Body any
	// Header holds per-request headers merged over the client defaults.
	Header map[string]string
}

// Response is a fully-buffered backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// IsJSON reports whether the response body is a JSON document. The
// Content-Type header is authoritative when present; otherwise the body
// itself is inspected.
func (r *Response) IsJSON() bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mt == "application/json"
		}
	}
	return json.Valid(r.Body)
}

// JSON decodes the response body into dest.
func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Error is a transport-level failure. Response is non-nil when the backend
// answered with a non-2xx status and nil when the request never completed.
type Error struct {
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("backend responded with status %d", e.Response.Status)
	}
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client sends requests to the backend. It is safe for concurrent use and
// is constructed once per application binding.
type Client struct {
	hc            *http.Client
	tokenSource   oauth2.TokenSource
	defaultHeader map[string]string
	timeout       time.Duration
	logger        *slog.Logger
}

// NewClient creates a conventional HTTP/1.1 client. The token source is the
// credential boundary: acquisition and refresh stay with the caller.
func NewClient(ts oauth2.TokenSource, defaultHeader map[string]string, logger *slog.Logger) *Client {
	return NewClientWithHTTP(&http.Client{}, ts, defaultHeader, logger)
}

// NewClientWithHTTP creates a client over a caller-supplied http.Client.
// Used for the multiplexed HTTP/2 session path and for tests.
func NewClientWithHTTP(hc *http.Client, ts oauth2.TokenSource, defaultHeader map[string]string, logger *slog.Logger) *Client {
	return &Client{
		hc:            hc,
		tokenSource:   ts,
		defaultHeader: defaultHeader,
		timeout:       DefaultTimeout,
		logger:        logger.With("component", "Transport"),
	}
}

// Do sends one request. Non-2xx responses are returned alongside a typed
// *Error wrapping them so callers can classify the payload; failures before
// a response is received return a *Error with a nil Response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, &Error{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq = httpReq.WithContext(ctx)

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "url", req.URL, "err", err)
		return nil, &Error{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	c.logger.Debug("request complete",
		"method", req.Method, "url", req.URL,
		"status", resp.StatusCode, "duration", time.Since(start))

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &Error{Response: out, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return out, nil
}

// EncodeBody renders a request body exactly as Do would send it. The batch
// encoder uses this to keep sub-request payloads byte-identical to
// single-send payloads.
func EncodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return raw, nil
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	raw, err := EncodeBody(req.Body)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if raw != nil {
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if raw != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.defaultHeader {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	if c.tokenSource != nil {
		tok, err := c.tokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire access token: %w", err)
		}
		tok.SetAuthHeader(httpReq)
	}
	return httpReq, nil
}
