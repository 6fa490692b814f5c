package streambuffer

import (
	"context"
	"errors"
	"time"
)

// cancelledMsg is the literal error string recorded on a buffer when stream
// processing is cancelled, matched against the original implementation.
const cancelledMsg = "cancelled"

// ChunkSource produces the chunk sequence for one streaming attempt. It
// delivers chunks to onChunk as they arrive and returns when the underlying
// stream ends (nil error), fails, or ctx is cancelled.
type ChunkSource func(ctx context.Context, onChunk func(chunk string) error) error

// Handler wraps a Registry with retry-and-resume semantics for
// language-model streaming calls.
type Handler struct {
	registry   *Registry
	maxRetries int
	retryDelay time.Duration
	savePartial bool
	sleep      func(time.Duration)
}

// NewHandler constructs a Handler. maxRetries and retryDelay mirror the LLM
// configuration's llm_max_retries/llm_retry_delay fields.
func NewHandler(registry *Registry, maxRetries int, retryDelay time.Duration, savePartial bool) *Handler {
	return &Handler{
		registry:    registry,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		savePartial: savePartial,
		sleep:       time.Sleep,
	}
}

// ProcessStream consumes a single attempt's chunk sequence into a fresh
// buffer for responseID. On success the buffer is marked complete. On
// context cancellation the buffer is marked errored with "cancelled" and the
// context error is returned. On any other failure the buffer is marked
// errored with the failure's message and the error is returned.
func (h *Handler) ProcessStream(ctx context.Context, source ChunkSource, responseID, conversationID string) (*Buffer, error) {
	buffer := h.registry.Create(responseID, conversationID)

	err := source(ctx, func(chunk string) error {
		h.registry.Append(responseID, chunk)
		return nil
	})

	if err == nil {
		h.registry.MarkComplete(responseID)
		return buffer, nil
	}

	if errors.Is(err, context.Canceled) {
		h.registry.MarkError(responseID, cancelledMsg)
		return buffer, err
	}

	h.registry.MarkError(responseID, err.Error())
	return buffer, err
}

// ProcessWithRetry runs ProcessStream up to max_retries times in total,
// with linear backoff retry_delay * (attempt+1), attempt counted from 0,
// between attempts. If every
// attempt fails and partial content has accumulated, the partial buffer in
// its error state is returned without an error when save_partial is set;
// otherwise the last error is returned. Cancellation is never retried: it
// propagates immediately.
func (h *Handler) ProcessWithRetry(ctx context.Context, source func(ctx context.Context) (ChunkSource, error), responseID, conversationID string) (*Buffer, error) {
	var lastErr error

	for attempt := 0; attempt < h.maxRetries; attempt++ {
		chunkSource, err := source(ctx)
		if err != nil {
			lastErr = err
		} else {
			buffer, err := h.ProcessStream(ctx, chunkSource, responseID, conversationID)
			if err == nil {
				return buffer, nil
			}
			if errors.Is(err, context.Canceled) {
				return buffer, err
			}
			lastErr = err
		}

		if attempt < h.maxRetries-1 {
			h.sleep(h.retryDelay * time.Duration(attempt+1))
			continue
		}

		if buffer, ok := h.registry.Get(responseID); ok {
			buffer.MarkError(lastErr.Error(), time.Now())
		}
	}

	if buffer, ok := h.registry.Get(responseID); ok && h.savePartial && buffer.PartialContent() != "" {
		return buffer, nil
	}

	return nil, lastErr
}

// PartialResponse returns the accumulated content for responseID, for
// client-side reconnect-and-recover flows.
func (h *Handler) PartialResponse(responseID string) (string, bool) {
	b, ok := h.registry.Get(responseID)
	if !ok {
		return "", false
	}
	return b.PartialContent(), true
}

// CleanupBuffer removes the buffer for responseID.
func (h *Handler) CleanupBuffer(responseID string) { h.registry.Cleanup(responseID) }

// CleanupOldBuffers removes every buffer idle longer than maxAge, returning
// the count removed.
func (h *Handler) CleanupOldBuffers(maxAge time.Duration) int {
	return h.registry.CleanupOlderThan(maxAge)
}
