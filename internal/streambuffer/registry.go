package streambuffer

import (
	"sync"
	"time"
)

// Registry maps response ids to their Buffer. All operations are
// thread-safe.
type Registry struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
	now     func() time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		buffers: make(map[string]*Buffer),
		now:     time.Now,
	}
}

// Create allocates a new empty buffer for responseID, replacing any
// existing buffer with the same id.
func (r *Registry) Create(responseID, conversationID string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := newBuffer(responseID, conversationID, r.now())
	r.buffers[responseID] = b
	return b
}

// Get returns the buffer for responseID, or false if none exists.
func (r *Registry) Get(responseID string) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[responseID]
	return b, ok
}

// Append appends chunk to the named buffer, reporting false if the buffer
// does not exist.
func (r *Registry) Append(responseID, chunk string) bool {
	b, ok := r.Get(responseID)
	if !ok {
		return false
	}
	b.Append(chunk, r.now())
	return true
}

// MarkComplete marks the named buffer complete, reporting false if it does
// not exist.
func (r *Registry) MarkComplete(responseID string) bool {
	b, ok := r.Get(responseID)
	if !ok {
		return false
	}
	b.MarkComplete(r.now())
	return true
}

// MarkError marks the named buffer errored with msg, reporting false if it
// does not exist.
func (r *Registry) MarkError(responseID, msg string) bool {
	b, ok := r.Get(responseID)
	if !ok {
		return false
	}
	b.MarkError(msg, r.now())
	return true
}

// Content returns the full content of the named buffer, or "" if it does
// not exist.
func (r *Registry) Content(responseID string) string {
	b, ok := r.Get(responseID)
	if !ok {
		return ""
	}
	return b.Content()
}

// PartialContent is an alias for Content, named for recovery call sites.
func (r *Registry) PartialContent(responseID string) string {
	return r.Content(responseID)
}

// Cleanup removes the named buffer.
func (r *Registry) Cleanup(responseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, responseID)
}

// CleanupOlderThan removes every buffer whose last update is older than age,
// returning the count removed.
func (r *Registry) CleanupOlderThan(age time.Duration) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.buffers))
	for id, b := range r.buffers {
		if r.now().Sub(b.UpdatedAt()) > age {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Cleanup(id)
	}
	return len(ids)
}
