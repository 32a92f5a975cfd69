package fastalloc

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogger_HeapLifecycle(t *testing.T) {
	var buf bytes.Buffer
	h, err := New(WithLogger(newBufferLogger(&buf)))
	require.NoError(t, err)

	_, err = h.Alloc(4096)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	out := buf.String()
	assert.Contains(t, out, `"msg":"heap created"`)
	assert.Contains(t, out, `"msg":"heap close"`)
	assert.Contains(t, out, `"kind":"slab"`)
	assert.Contains(t, out, `"kind":"large"`)
	assert.Contains(t, out, `"kind":"meta"`)
	assert.Contains(t, out, `"msg":"released"`)
}

func TestLogger_ReserveFailure(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(
		WithLogger(newBufferLogger(&buf)),
		withReserver(failingReserver(errors.New("boom"))),
	)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"reserve failed"`)
	assert.Contains(t, out, `"level":"ERROR"`)
}

func TestLogger_AnomaliesAreRateLimited(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	for range 20 {
		l.LogLimit("deferred queue", 1, ErrDeferredQueueFull)
	}

	n := strings.Count(buf.String(), "capacity limit reached")
	assert.GreaterOrEqual(t, n, 5)
	assert.Less(t, n, 20)
}

func TestLogger_WithHeapSharesLimiter(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	child := l.WithHeap(7)

	assert.Same(t, l.anomalies, child.anomalies)

	child.LogHeap("created", nil)
	assert.Contains(t, buf.String(), `"heap":7`)
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.NotPanics(t, func() {
		l.LogReserve("slab", 1, nil)
		l.LogRelease("slab", 1, errors.New("x"))
		l.LogLimit("x", 1, nil)
		l.LogHeap("close", nil)
	})
}

func TestLoggerConstructors(t *testing.T) {
	assert.NotNil(t, NewJSONLogger(slog.LevelWarn))
	assert.NotNil(t, NewTextLogger(slog.LevelDebug))
	assert.NotNil(t, NewLogger(nil))
}
