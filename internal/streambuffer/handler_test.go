package streambuffer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_CompleteAndErrorMutuallyExclusive(t *testing.T) {
	b := newBuffer("r1", "", time.Now())
	b.MarkComplete(time.Now())
	b.MarkError("boom", time.Now())

	assert.True(t, b.Complete())
	_, hasErr := b.Err()
	assert.False(t, hasErr, "marking error after complete must not set error")
}

func TestRegistry_CreateAppendContent(t *testing.T) {
	r := NewRegistry()
	r.Create("r1", "c1")
	r.Append("r1", "hello ")
	r.Append("r1", "world")

	assert.Equal(t, "hello world", r.Content("r1"))
	assert.True(t, r.MarkComplete("r1"))

	b, ok := r.Get("r1")
	require.True(t, ok)
	assert.True(t, b.Complete())
}

func TestHandler_ProcessStream_CancellationMarksCancelledLiteral(t *testing.T) {
	reg := NewRegistry()
	h := NewHandler(reg, 3, time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	source := func(_ context.Context, onChunk func(string) error) error {
		_ = onChunk("partial")
		cancel()
		return context.Canceled
	}

	_, err := h.ProcessStream(ctx, source, "r1", "")
	assert.ErrorIs(t, err, context.Canceled)

	b, ok := reg.Get("r1")
	require.True(t, ok)
	msg, hasErr := b.Err()
	assert.True(t, hasErr)
	assert.Equal(t, "cancelled", msg)
	assert.Equal(t, "partial", b.PartialContent())
}

func TestHandler_ProcessWithRetry_LinearBackoffAndPartialOnExhaustion(t *testing.T) {
	reg := NewRegistry()
	h := NewHandler(reg, 3, 10*time.Millisecond, true)

	var slept []time.Duration
	h.sleep = func(d time.Duration) { slept = append(slept, d) }

	attempts := 0
	source := func(ctx context.Context) (ChunkSource, error) {
		attempts++
		return func(_ context.Context, onChunk func(string) error) error {
			_ = onChunk("partial-data")
			return errors.New("upstream failure")
		}, nil
	}

	buffer, err := h.ProcessWithRetry(context.Background(), source, "r1", "")
	require.NoError(t, err, "partial content with save_partial must suppress the error")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)
	assert.Equal(t, "partial-data", buffer.PartialContent())
}

func TestHandler_ProcessWithRetry_SucceedsWithoutExhaustingRetries(t *testing.T) {
	reg := NewRegistry()
	h := NewHandler(reg, 3, time.Millisecond, true)

	attempts := 0
	source := func(ctx context.Context) (ChunkSource, error) {
		attempts++
		return func(_ context.Context, onChunk func(string) error) error {
			_ = onChunk("ok")
			if attempts < 2 {
				return errors.New("transient")
			}
			return nil
		}, nil
	}

	buffer, err := h.ProcessWithRetry(context.Background(), source, "r1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, buffer.Complete())
}
