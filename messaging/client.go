package messaging

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-push-admin/internal/batch"
	"github.com/tinywideclouds/go-push-admin/pkg/apierror"
)

// sendEachConcurrency bounds the number of in-flight requests per
// SendEach call.
const sendEachConcurrency = 50

// Send delivers one message and returns its backend-assigned resource name
// ("projects/{project}/messages/{id}"). Backend failures are returned as
// normalized *apierror.Error values.
func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	return c.sendOne(ctx, msg, false)
}

// SendDryRun validates the message against the backend without delivering it.
func (c *Client) SendDryRun(ctx context.Context, msg *Message) (string, error) {
	return c.sendOne(ctx, msg, true)
}

func (c *Client) sendOne(ctx context.Context, msg *Message, dryRun bool) (string, error) {
	wire, err := wireMessage(msg)
	if err != nil {
		return "", apierror.New(apierror.InvalidArgument, err.Error())
	}
	sr := c.handler.sendForResponse(ctx, c.endpoint+c.sendPath(), &wireSend{Message: wire, ValidateOnly: dryRun})
	if !sr.Success {
		return "", sr.Error
	}
	return sr.MessageID, nil
}

// SendEach delivers up to 500 messages as concurrent individual requests
// over the conventional transport. One message's failure never affects the
// others: the returned BatchResponse carries a per-message outcome,
// positionally aligned with msgs. The call itself fails only when the input
// list is invalid.
func (c *Client) SendEach(ctx context.Context, msgs []*Message) (*BatchResponse, error) {
	return c.sendEach(ctx, nil, msgs)
}

// SendEachWithSession is SendEach routed over a caller-owned multiplexed
// session, so all requests share one underlying connection.
func (c *Client) SendEachWithSession(ctx context.Context, session *Session, msgs []*Message) (*BatchResponse, error) {
	if session == nil {
		return nil, apierror.New(apierror.InvalidArgument, "session must not be nil")
	}
	return c.sendEach(ctx, session, msgs)
}

func (c *Client) sendEach(ctx context.Context, session *Session, msgs []*Message) (*BatchResponse, error) {
	if len(msgs) > maxMessages {
		return nil, apierror.New(apierror.InvalidArgument,
			fmt.Sprintf("a list of at most %d messages may be sent per call", maxMessages))
	}

	url := c.endpoint + c.sendPath()
	responses := make([]*SendResponse, len(msgs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(sendEachConcurrency)
	for i, msg := range msgs {
		wire, err := wireMessage(msg)
		if err != nil {
			responses[i] = &SendResponse{Error: apierror.New(apierror.InvalidArgument, err.Error())}
			continue
		}
		i := i
		eg.Go(func() error {
			body := &wireSend{Message: wire}
			if session != nil {
				responses[i] = c.handler.sendForResponseOverSession(ctx, session, url, body)
			} else {
				responses[i] = c.handler.sendForResponse(ctx, url, body)
			}
			return nil
		})
	}
	// Workers never return errors; per-message failures live in responses.
	_ = eg.Wait()

	successCount := 0
	for _, r := range responses {
		if r.Success {
			successCount++
		}
	}
	return &BatchResponse{
		Responses:    responses,
		SuccessCount: successCount,
		FailureCount: len(responses) - successCount,
	}, nil
}

// SendAll delivers up to 500 messages packed into a single batched wire
// transaction, bounding connection usage to one round trip regardless of
// batch size. Per-message outcomes are reported in input order. The call
// fails as a whole only when the batch transaction itself cannot be sent or
// decoded, and then no partial results are returned.
func (c *Client) SendAll(ctx context.Context, msgs []*Message) (*BatchResponse, error) {
	return c.sendAll(ctx, msgs, false)
}

// SendAllDryRun validates a batch against the backend without delivering it.
func (c *Client) SendAllDryRun(ctx context.Context, msgs []*Message) (*BatchResponse, error) {
	return c.sendAll(ctx, msgs, true)
}

func (c *Client) sendAll(ctx context.Context, msgs []*Message, dryRun bool) (*BatchResponse, error) {
	if len(msgs) > maxMessages {
		return nil, apierror.New(apierror.InvalidArgument,
			fmt.Sprintf("a list of at most %d messages may be sent per call", maxMessages))
	}

	reqs := make([]*batch.SubRequest, 0, len(msgs))
	for i, msg := range msgs {
		wire, err := wireMessage(msg)
		if err != nil {
			return nil, apierror.New(apierror.InvalidArgument, fmt.Sprintf("invalid message at index %d: %v", i, err))
		}
		reqs = append(reqs, &batch.SubRequest{
			URL:    c.endpoint + c.sendPath(),
			Body:   &wireSend{Message: wire, ValidateOnly: dryRun},
			Header: defaultHeader(),
		})
	}
	return c.handler.sendBatch(ctx, reqs)
}

// --- Topic management ---

// ErrorInfo locates one failed instance inside a topic management call.
type ErrorInfo struct {
	// Index of the registration token this error belongs to.
	Index int
	// Reason is the backend-reported failure reason.
	Reason string
}

// TopicManagementResponse is the aggregate outcome of a subscribe or
// unsubscribe call.
type TopicManagementResponse struct {
	SuccessCount int
	FailureCount int
	Errors       []*ErrorInfo
}

// SubscribeToTopic subscribes up to 1000 registration tokens to a topic.
func (c *Client) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicManagementResponse, error) {
	return c.manageTopic(ctx, tokens, topic, "/iid/v1:batchAdd")
}

// UnsubscribeFromTopic removes up to 1000 registration tokens from a topic.
func (c *Client) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicManagementResponse, error) {
	return c.manageTopic(ctx, tokens, topic, "/iid/v1:batchRemove")
}

// manageTopic drives the instance-ID endpoints, whose success schema is not
// the send-result schema; it consumes the raw-passthrough call path.
func (c *Client) manageTopic(ctx context.Context, tokens []string, topic string, path string) (*TopicManagementResponse, error) {
	if len(tokens) == 0 {
		return nil, apierror.New(apierror.InvalidArgument, "at least one registration token is required")
	}
	if len(tokens) > maxTopicTokens {
		return nil, apierror.New(apierror.InvalidArgument,
			fmt.Sprintf("at most %d registration tokens may be specified per call", maxTopicTokens))
	}
	name := strings.TrimPrefix(topic, "/topics/")
	if !topicNamePattern.MatchString(name) {
		return nil, apierror.New(apierror.InvalidArgument, fmt.Sprintf("malformed topic name %q", topic))
	}

	raw, err := c.handler.invokeRequest(ctx, c.endpoint+path, map[string]any{
		"to":                  "/topics/" + name,
		"registration_tokens": tokens,
	})
	if err != nil {
		return nil, err
	}
	return parseTopicResponse(raw), nil
}

// parseTopicResponse counts per-token outcomes from the raw instance-ID
// reply: {"results": [{}, {"error": "NOT_FOUND"}, ...]}.
func parseTopicResponse(raw map[string]any) *TopicManagementResponse {
	resp := &TopicManagementResponse{}
	results, ok := raw["results"].([]any)
	if !ok {
		return resp
	}
	for i, entry := range results {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if reason, failed := fields["error"].(string); failed {
			resp.FailureCount++
			resp.Errors = append(resp.Errors, &ErrorInfo{Index: i, Reason: reason})
		} else {
			resp.SuccessCount++
		}
	}
	return resp
}
