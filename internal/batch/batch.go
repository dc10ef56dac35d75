// Package batch packs independent sub-requests into a single multipart/mixed
// wire transaction and decodes the multipart reply back into per-subrequest
// responses, positionally aligned with the input. Batching bounds connection
// usage to one round trip per batch regardless of size.
package batch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-push-admin/internal/transport"
)

// SubRequest is one fully-formed unit of work inside a batch. Immutable,
// supplied by the caller, consumed once.
type SubRequest struct {
	Method string // defaults to POST
	URL    string
	Body   any
	Header map[string]string
}

// Client encodes, sends and decodes batch calls over a shared transport.
type Client struct {
	transport *transport.Client
	batchURL  string
	logger    *slog.Logger
}

// NewClient creates a batch client bound to the fixed batch endpoint.
func NewClient(tc *transport.Client, batchURL string, logger *slog.Logger) *Client {
	return &Client{
		transport: tc,
		batchURL:  batchURL,
		logger:    logger.With("component", "BatchClient"),
	}
}

// Send issues the whole batch as one multipart POST. The returned slice is
// positionally aligned with reqs: response i belongs to reqs[i]. Any failure
// to send or decode the multipart exchange fails the entire call; partial
// results are never returned.
func (c *Client) Send(ctx context.Context, reqs []*SubRequest, header map[string]string) ([]*transport.Response, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("batch requires at least one sub-request")
	}

	body, contentType, err := encode(reqs)
	if err != nil {
		return nil, err
	}

	merged := map[string]string{"Content-Type": contentType}
	for k, v := range header {
		merged[k] = v
	}

	resp, err := c.transport.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.batchURL,
		Body:   body,
		Header: merged,
	})
	if err != nil {
		return nil, err
	}

	responses, err := decode(resp, len(reqs))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("batch round trip complete", "sub_requests", len(reqs))
	return responses, nil
}

// encode serializes the sub-requests into a multipart/mixed payload. Each
// part is an application/http document carrying one embedded HTTP request,
// tagged with a 1-based Content-Id for response alignment.
func encode(reqs []*SubRequest) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	// Explicit boundary so retries of the same payload stay self-consistent.
	if err := w.SetBoundary("__END_OF_PART__" + uuid.NewString()); err != nil {
		return nil, "", fmt.Errorf("failed to set multipart boundary: %w", err)
	}

	for i, req := range reqs {
		part, err := serialize(req)
		if err != nil {
			return nil, "", fmt.Errorf("failed to serialize sub-request %d: %w", i, err)
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "application/http")
		h.Set("Content-Id", strconv.Itoa(i+1))
		h.Set("Content-Transfer-Encoding", "binary")
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart section: %w", err)
		}
		if _, err := pw.Write(part); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart section: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart payload: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("multipart/mixed; boundary=%s", w.Boundary()), nil
}

// serialize renders one sub-request as an embedded HTTP/1.1 request document.
func serialize(req *SubRequest) ([]byte, error) {
	body, err := transport.EncodeBody(req.Body)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s %s HTTP/1.1\r\n", method, req.URL)
	fmt.Fprintf(buf, "Content-Type: application/json; charset=UTF-8\r\n")
	for k, v := range req.Header {
		fmt.Fprintf(buf, "%s: %s\r\n", k, v)
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// decode parses the multipart reply into per-subrequest responses. Parts are
// re-aligned by Content-Id; parts without a usable tag keep their wire order.
func decode(resp *transport.Response, want int) ([]*transport.Response, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("expected a multipart batch reply, got %q", resp.Header.Get("Content-Type"))
	}

	out := make([]*transport.Response, want)
	mr := multipart.NewReader(bytes.NewReader(resp.Body), params["boundary"])
	seen := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed multipart reply: %w", err)
		}
		if seen >= want {
			return nil, fmt.Errorf("batch reply carries more than %d sections", want)
		}

		sub, err := readEmbeddedResponse(part)
		if err != nil {
			return nil, err
		}
		idx := partIndex(part.Header.Get("Content-Id"), seen)
		if idx < 0 || idx >= want || out[idx] != nil {
			return nil, fmt.Errorf("batch reply section has conflicting Content-Id %q", part.Header.Get("Content-Id"))
		}
		out[idx] = sub
		seen++
	}
	if seen != want {
		return nil, fmt.Errorf("batch reply carries %d sections, expected %d", seen, want)
	}
	return out, nil
}

func readEmbeddedResponse(part io.Reader) (*transport.Response, error) {
	httpResp, err := http.ReadResponse(bufio.NewReader(part), nil)
	if err != nil {
		return nil, fmt.Errorf("malformed embedded response: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded response body: %w", err)
	}
	return &transport.Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

// partIndex recovers the 0-based input position from a Content-Id of the
// form "N" or "response-N" (optionally angle-bracketed). Falls back to the
// wire position when the tag is absent or unparsable.
func partIndex(contentID string, fallback int) int {
	id := strings.Trim(contentID, "<>")
	id = strings.TrimPrefix(id, "response-")
	n, err := strconv.Atoi(id)
	if err != nil {
		return fallback
	}
	return n - 1
}
