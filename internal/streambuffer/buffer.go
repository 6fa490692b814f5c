// Package streambuffer collects partial chunks from long-running
// language-model calls into an in-memory buffer keyed by response id, so a
// disconnecting client can reconnect and recover partial output instead of
// losing it. A Handler wraps the registry with retry-and-resume semantics.
package streambuffer

import (
	"strings"
	"sync"
	"time"
)

// Buffer accumulates chunks for one streamed response. Complete and Error
// are mutually exclusive terminal states: a buffer reaching one must never
// also carry the other.
type Buffer struct {
	ResponseID     string
	ConversationID string

	mu        sync.Mutex
	chunks    []string
	complete  bool
	errMsg    string
	createdAt time.Time
	updatedAt time.Time
}

func newBuffer(responseID, conversationID string, now time.Time) *Buffer {
	return &Buffer{
		ResponseID:     responseID,
		ConversationID: conversationID,
		createdAt:      now,
		updatedAt:      now,
	}
}

// Append adds a chunk and refreshes the update timestamp.
func (b *Buffer) Append(chunk string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, chunk)
	b.updatedAt = now
}

// MarkComplete sets the terminal complete state. A buffer already in an
// error state is not overwritten back to complete.
func (b *Buffer) MarkComplete(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.errMsg != "" {
		return
	}
	b.complete = true
	b.updatedAt = now
}

// MarkError sets the terminal error state with msg. A buffer already marked
// complete is not overwritten back to an error state.
func (b *Buffer) MarkError(msg string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.complete {
		return
	}
	b.errMsg = msg
	b.updatedAt = now
}

// Content returns the full concatenation of chunks received so far.
func (b *Buffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.chunks, "")
}

// PartialContent is an alias for Content used by recovery callers; it
// exists as a distinct name to mirror the registry's create/append/partial
// vocabulary used by callers recovering from a disconnect.
func (b *Buffer) PartialContent() string { return b.Content() }

// Complete reports whether the buffer reached its complete terminal state.
func (b *Buffer) Complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.complete
}

// Err reports the error message, if any, and whether one is set.
func (b *Buffer) Err() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errMsg, b.errMsg != ""
}

// UpdatedAt returns the timestamp of the buffer's most recent mutation.
func (b *Buffer) UpdatedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updatedAt
}
