// Package resilience classifies transient failures and retries entity
// writes with bounded backoff.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a write failure worth retrying. The entity store
// transport tags throttled and server-side failures with the status code
// that triggered the classification; network-level failures carry a zero
// code. Anything not classified transient surfaces immediately so the
// optimistic edit can be flagged for a manual retry instead of looping.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError tags err as retryable. statusCode is the HTTP status
// behind the classification, or zero when the failure never got a response.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// retryableMessages matches failure shapes that reach us only as flattened
// strings after the HTTP client and error wrapping are done with them. The
// entity write path sees these when the backing service restarts or a
// keep-alive connection goes stale mid-PATCH.
var retryableMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"http2: server sent goaway",
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, a network timeout, a dropped or
// refused connection, or one of the known flattened failure messages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
