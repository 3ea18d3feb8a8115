package resilience

import (
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	t.Run("nil is not transient", func(t *testing.T) {
		t.Parallel()
		assert.False(t, IsTransient(nil))
	})

	t.Run("wrapped TransientError", func(t *testing.T) {
		t.Parallel()
		err := NewTransientError(eris.New("503"), 503)
		assert.True(t, IsTransient(err))
		assert.True(t, IsTransient(eris.Wrap(err, "write email")))
	})

	t.Run("connection errors", func(t *testing.T) {
		t.Parallel()
		assert.True(t, IsTransient(syscall.ECONNRESET))
		assert.True(t, IsTransient(syscall.ECONNREFUSED))
	})

	t.Run("string-matched network failures", func(t *testing.T) {
		t.Parallel()
		assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
		assert.True(t, IsTransient(eris.New("dial: i/o timeout")))
		assert.True(t, IsTransient(eris.New("net/http: TLS handshake timeout")))
		assert.True(t, IsTransient(eris.New("http2: server sent GOAWAY and closed the connection")))
	})

	t.Run("ordinary errors are permanent", func(t *testing.T) {
		t.Parallel()
		assert.False(t, IsTransient(eris.New("validation failed")))
	})
}

func TestTransientErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := eris.New("boom")
	te := NewTransientError(inner, 502)
	assert.Equal(t, "boom", te.Error())
	assert.True(t, eris.Is(te, inner))
	assert.Equal(t, 502, te.StatusCode)
}
