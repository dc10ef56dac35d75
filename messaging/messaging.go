// Package messaging is the client for the push platform's messaging API. It
// sends messages to individual devices, topics, or condition expressions,
// either one at a time, concurrently over a multiplexed session, or packed
// into a single batched wire transaction with per-item outcome reporting.
package messaging

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tinywideclouds/go-push-admin/internal/batch"
	"github.com/tinywideclouds/go-push-admin/internal/transport"
)

const (
	defaultEndpoint = "https://push.tinywideclouds.dev"

	// maxMessages is the upper bound on messages per SendEach/SendAll call.
	maxMessages = 500
	// maxTopicTokens is the upper bound on tokens per topic management call.
	maxTopicTokens = 1000

	sdkVersion       = "0.4.1"
	apiFormatVersion = "2"
)

var topicNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_.~%]+$`)

// Config carries the per-application binding for the messaging client.
type Config struct {
	ProjectID string
	// Endpoint overrides the backend base URL. Leave empty for production.
	Endpoint string
	// BatchEndpoint overrides the fixed batch URL. Defaults to Endpoint+"/batch".
	BatchEndpoint string
	// TokenSource supplies bearer credentials. Acquisition and refresh are
	// owned by the caller.
	TokenSource oauth2.TokenSource
	// HTTPClient overrides the conventional HTTP/1.1 client. Used in tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the messaging API client. Construct once per application
// binding and reuse across calls; it is safe for concurrent use.
type Client struct {
	projectID string
	endpoint  string
	handler   *requestHandler
}

// NewClient creates a messaging client. The underlying transport clients are
// constructed here and owned exclusively by this client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("messaging: project ID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "Messaging")

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	batchEndpoint := cfg.BatchEndpoint
	if batchEndpoint == "" {
		batchEndpoint = endpoint + "/batch"
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	tc := transport.NewClientWithHTTP(hc, cfg.TokenSource, defaultHeader(), logger)
	bc := batch.NewClient(tc, batchEndpoint, logger)

	return &Client{
		projectID: cfg.ProjectID,
		endpoint:  endpoint,
		handler:   newRequestHandler(tc, bc, cfg.TokenSource, logger),
	}, nil
}

// defaultHeader identifies the client library and wire format revision.
func defaultHeader() map[string]string {
	return map[string]string{
		"X-Client-Version":     "go-push-admin/" + sdkVersion,
		"X-API-Format-Version": apiFormatVersion,
	}
}

// legacyHeader additionally marks access-token-based authentication, which
// the instance-ID endpoints still require.
func legacyHeader() map[string]string {
	h := defaultHeader()
	h["X-Access-Token-Auth"] = "true"
	return h
}

func (c *Client) sendPath() string {
	return fmt.Sprintf("/v1/projects/%s/messages:send", c.projectID)
}

// Message targets exactly one of Token, Topic or Condition and carries the
// notification content plus an optional key/value data payload.
type Message struct {
	Data         map[string]string `json:"data,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Token        string            `json:"token,omitempty"`
	Topic        string            `json:"topic,omitempty"`
	Condition    string            `json:"condition,omitempty"`
}

// Notification is the display payload shown on the device.
type Notification struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image,omitempty"`
}

// wireMessage validates a message and returns the copy that goes on the
// wire; a "/topics/" prefix on the topic is accepted and stripped. The
// caller's message is never mutated.
func wireMessage(msg *Message) (*Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("message must not be nil")
	}
	out := *msg
	out.Topic = strings.TrimPrefix(msg.Topic, "/topics/")

	targets := 0
	for _, t := range []string{out.Token, out.Topic, out.Condition} {
		if t != "" {
			targets++
		}
	}
	if targets != 1 {
		return nil, fmt.Errorf("exactly one of token, topic or condition must be specified")
	}
	if out.Topic != "" && !topicNamePattern.MatchString(out.Topic) {
		return nil, fmt.Errorf("malformed topic name %q", out.Topic)
	}
	return &out, nil
}

// wireSend is the request envelope of the messages:send operation.
type wireSend struct {
	ValidateOnly bool     `json:"validate_only,omitempty"`
	Message      *Message `json:"message"`
}
