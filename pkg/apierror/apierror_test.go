package apierror_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-admin/pkg/apierror"
)

func TestCodeFromBody(t *testing.T) {
	t.Run("Top-level status", func(t *testing.T) {
		body := []byte(`{"error":{"status":"INVALID_ARGUMENT","message":"bad token"}}`)
		code, ok := apierror.CodeFromBody(body)
		require.True(t, ok)
		assert.Equal(t, apierror.InvalidArgument, code)
	})

	t.Run("Detail errorCode wins over status", func(t *testing.T) {
		body := []byte(`{"error":{"status":"NOT_FOUND","message":"gone","details":[
			{"@type":"type.tinywideclouds.dev/push.v1.PushError","errorCode":"UNREGISTERED"}]}}`)
		code, ok := apierror.CodeFromBody(body)
		require.True(t, ok)
		assert.Equal(t, apierror.Unregistered, code)
	})

	t.Run("Non-JSON body", func(t *testing.T) {
		_, ok := apierror.CodeFromBody([]byte("<html>502</html>"))
		assert.False(t, ok)
	})

	t.Run("JSON without error envelope", func(t *testing.T) {
		_, ok := apierror.CodeFromBody([]byte(`{"name":"projects/p/messages/1"}`))
		assert.False(t, ok)
	})
}

func TestFromResponse(t *testing.T) {
	t.Run("Body code preferred over status", func(t *testing.T) {
		body := []byte(`{"error":{"status":"QUOTA_EXCEEDED","message":"slow down"}}`)
		err := apierror.FromResponse(400, body)
		assert.Equal(t, apierror.QuotaExceeded, err.Code)
		assert.Equal(t, "slow down", err.Message)
		assert.Equal(t, 400, err.Status)
	})

	t.Run("Status fallback when body is opaque", func(t *testing.T) {
		err := apierror.FromResponse(503, []byte("Service Unavailable"))
		assert.Equal(t, apierror.Unavailable, err.Code)
		assert.Contains(t, err.Message, "503")
	})

	t.Run("5xx maps to internal", func(t *testing.T) {
		err := apierror.FromResponse(500, nil)
		assert.Equal(t, apierror.Internal, err.Code)
	})

	t.Run("Unrecognized status maps to unknown", func(t *testing.T) {
		err := apierror.FromResponse(418, nil)
		assert.Equal(t, apierror.Unknown, err.Code)
	})
}

func TestFromError_Idempotent(t *testing.T) {
	orig := apierror.New(apierror.Unregistered, "token gone")

	t.Run("Already normalized passes through unchanged", func(t *testing.T) {
		assert.Same(t, orig, apierror.FromError(orig))
	})

	t.Run("Wrapped normalized error is unwrapped, not re-wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("send failed: %w", orig)
		assert.Same(t, orig, apierror.FromError(wrapped))
	})

	t.Run("Context deadline maps to deadline-exceeded", func(t *testing.T) {
		err := apierror.FromError(context.DeadlineExceeded)
		assert.Equal(t, apierror.DeadlineExceeded, err.Code)
	})

	t.Run("Network error maps to unavailable", func(t *testing.T) {
		opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		err := apierror.FromError(fmt.Errorf("send failed: %w", opErr))
		assert.Equal(t, apierror.Unavailable, err.Code)
	})

	t.Run("Network timeout maps to deadline-exceeded", func(t *testing.T) {
		err := apierror.FromError(timeoutError{})
		assert.Equal(t, apierror.DeadlineExceeded, err.Code)
	})

	t.Run("Non-network failure maps to unknown, not unavailable", func(t *testing.T) {
		err := apierror.FromError(errors.New("malformed multipart reply"))
		assert.Equal(t, apierror.Unknown, err.Code)
	})
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestCodePredicates(t *testing.T) {
	err := fmt.Errorf("outer: %w", apierror.New(apierror.Unregistered, "gone"))
	assert.True(t, apierror.IsUnregistered(err))
	assert.False(t, apierror.IsQuotaExceeded(err))
	assert.False(t, apierror.IsUnregistered(errors.New("plain")))
}
