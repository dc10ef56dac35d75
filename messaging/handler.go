package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/tinywideclouds/go-push-admin/internal/batch"
	"github.com/tinywideclouds/go-push-admin/internal/transport"
	"github.com/tinywideclouds/go-push-admin/pkg/apierror"
)

// SendResponse is the outcome of sending one message. Exactly one of
// MessageID and Error is set, per Success. Immutable after construction.
type SendResponse struct {
	Success   bool
	MessageID string
	Error     *apierror.Error
}

// BatchResponse is the aggregate outcome of a multi-message call. Responses
// is positionally aligned with the input message list, so callers may zip
// inputs to outcomes by index.
type BatchResponse struct {
	Responses    []*SendResponse
	SuccessCount int
	FailureCount int
}

// requestHandler is the single point of orchestration for outbound calls to
// the messaging backend. It owns the shared HTTP configuration and the
// transport clients; one instance exists per messaging Client.
type requestHandler struct {
	http        *transport.Client
	batch       *batch.Client
	tokenSource oauth2.TokenSource
	logger      *slog.Logger
}

func newRequestHandler(tc *transport.Client, bc *batch.Client, ts oauth2.TokenSource, logger *slog.Logger) *requestHandler {
	return &requestHandler{http: tc, batch: bc, tokenSource: ts, logger: logger}
}

// invokeRequest sends one request with the legacy header set and returns the
// parsed JSON body. Success requires the body to parse as JSON and to carry
// no backend error envelope; a non-JSON 200 stays an error, callers of this
// path rely on JSON-only success. Used for endpoints whose success schema is
// not the send-result schema.
func (h *requestHandler) invokeRequest(ctx context.Context, url string, body any) (map[string]any, error) {
	resp, err := h.http.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    url,
		Body:   body,
		Header: legacyHeader(),
	})
	if err != nil {
		return nil, normalize(err)
	}
	if !resp.IsJSON() {
		return nil, apierror.FromResponse(resp.Status, resp.Body)
	}
	var parsed map[string]any
	if err := resp.JSON(&parsed); err != nil {
		return nil, apierror.FromResponse(resp.Status, resp.Body)
	}
	if _, hasErr := parsed["error"]; hasErr {
		return nil, apierror.FromResponse(resp.Status, resp.Body)
	}
	return parsed, nil
}

// sendForResponse sends one message over the conventional transport. It
// never fails for backend-level outcomes: every path resolves to a
// SendResponse, letting batch callers treat heterogeneous outcomes uniformly
// and single-send callers branch without unwrapping errors.
func (h *requestHandler) sendForResponse(ctx context.Context, url string, body any) *SendResponse {
	resp, err := h.http.Do(ctx, &transport.Request{Method: http.MethodPost, URL: url, Body: body})
	return h.toSendResponse(resp, err)
}

// sendForResponseOverSession has the identical contract but routes over the
// caller-supplied multiplexed session so that many concurrent sends share
// one underlying connection. The session is borrowed, never closed here.
func (h *requestHandler) sendForResponseOverSession(ctx context.Context, session *Session, url string, body any) *SendResponse {
	tc := transport.NewClientWithHTTP(session.httpClient(), h.tokenSource, defaultHeader(), h.logger)
	resp, err := tc.Do(ctx, &transport.Request{Method: http.MethodPost, URL: url, Body: body})
	return h.toSendResponse(resp, err)
}

// sendBatch delegates the whole batch to the multipart encoder and
// reconciles the positionally-aligned raw outcomes into one BatchResponse.
// Per-item failures never escalate to an overall failure; only failures of
// the batch transaction itself are fatal, and then no partial results are
// fabricated.
func (h *requestHandler) sendBatch(ctx context.Context, reqs []*batch.SubRequest) (*BatchResponse, error) {
	if len(reqs) == 0 {
		return &BatchResponse{Responses: []*SendResponse{}}, nil
	}

	raw, err := h.batch.Send(ctx, reqs, nil)
	if err != nil {
		return nil, normalize(err)
	}

	responses := make([]*SendResponse, len(raw))
	successCount := 0
	for i, r := range raw {
		responses[i] = h.toSendResponse(r, nil)
		if responses[i].Success {
			successCount++
		}
	}
	h.logger.Debug("batch reconciled",
		"total", len(responses), "success", successCount, "failure", len(responses)-successCount)
	return &BatchResponse{
		Responses:    responses,
		SuccessCount: successCount,
		FailureCount: len(responses) - successCount,
	}, nil
}

// toSendResponse applies the uniform success rule: HTTP 200 with a message
// resource name is a success, everything else is a classified failure.
func (h *requestHandler) toSendResponse(resp *transport.Response, err error) *SendResponse {
	if err != nil {
		return &SendResponse{Error: normalize(err)}
	}
	if resp.Status == http.StatusOK {
		var parsed struct {
			Name string `json:"name"`
		}
		if resp.JSON(&parsed) == nil && parsed.Name != "" {
			return &SendResponse{Success: true, MessageID: parsed.Name}
		}
		return &SendResponse{Error: apierror.New(apierror.Unknown, "backend response is missing the message resource name")}
	}
	return &SendResponse{Error: apierror.FromResponse(resp.Status, resp.Body)}
}

// normalize turns any transport outcome into a normalized error. Responses
// carried by transport errors are classified from their body; errors that
// are already normalized pass through untouched.
func normalize(err error) *apierror.Error {
	var terr *transport.Error
	if errors.As(err, &terr) && terr.Response != nil {
		return apierror.FromResponse(terr.Response.Status, terr.Response.Body)
	}
	return apierror.FromError(err)
}
