package messaging

import (
	"crypto/tls"
	"net/http"

	"golang.org/x/net/http2"
)

// Session is a multiplexed HTTP/2 connection handle. Many concurrent sends
// can share one Session without per-call connection setup cost. The session
// lifecycle is owned by the application binding that created it; the
// messaging client only borrows it and never closes it.
type Session struct {
	hc        *http.Client
	transport *http2.Transport
}

// NewSession creates a session that dials the backend directly over TLS.
func NewSession() *Session {
	t := &http2.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	return &Session{
		hc:        &http.Client{Transport: t},
		transport: t,
	}
}

// NewSessionWithClient wraps a caller-configured HTTP client, which must
// speak HTTP/2 to provide any multiplexing benefit. Used for custom dialers
// and in tests.
func NewSessionWithClient(hc *http.Client) *Session {
	return &Session{hc: hc}
}

func (s *Session) httpClient() *http.Client { return s.hc }

// Close releases idle connections held by the session. In-flight exchanges
// are unaffected.
func (s *Session) Close() error {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
		return nil
	}
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := s.hc.Transport.(idleCloser); ok {
		c.CloseIdleConnections()
	}
	return nil
}
