// Package agent implements the conversation and agent-state cache plus the
// tool-calling orchestration loop that drives an LLM through the
// workflow, tool, and knowledge-base surfaces.
package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"agentflow/internal/cache"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Conversation is the message history and bookkeeping timestamps for one
// chat session.
type Conversation struct {
	ID        string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State is the per-conversation agent bookkeeping: the workflow currently
// in flight (if any), the history of workflows this conversation has
// triggered, and every tool call made on its behalf.
type State struct {
	ConversationID  string
	CurrentWorkflow string
	WorkflowHistory []string
	ToolCalls       []ToolCallRecord
	UpdatedAt       time.Time
}

// ToolCallRecord is one tool invocation made during orchestration, kept
// for surfacing in chat responses and for audit.
type ToolCallRecord struct {
	Name   string
	Args   map[string]any
	Result any
	Error  string
}

// entry bundles a conversation with its agent state so both live and
// expire together under one cache key — keeping them in separate caches
// would let one survive an eviction the other didn't, leaving a
// conversation with no state or vice versa.
//
// mu serializes every mutation of conversation/state: the HTTP chat path
// and an async CHAT_PROCESS worker task can both touch the same
// conversation id concurrently, and the cache's own lock only protects
// the id->entry mapping, not what callers do with the entry afterward.
type entry struct {
	mu           sync.Mutex
	conversation *Conversation
	state        *State
}

// ConversationStore is the bounded LRU+TTL-backed cache of conversations
// and their agent state, mirroring the in-memory session store the
// reference chat agent keeps but bounded so a long-running process cannot
// accumulate unbounded conversation history.
type ConversationStore struct {
	entries       *cache.LRUTTL
	ttl           time.Duration
	historyWindow int
}

// NewConversationStore constructs a store bounded at maxConversations
// entries, each conversation/state pair expiring after ttl of inactivity.
// historyWindow caps how many recent messages Recent returns.
func NewConversationStore(maxConversations int, ttl time.Duration, historyWindow int) *ConversationStore {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &ConversationStore{
		entries:       cache.NewLRUTTL(maxConversations, ttl),
		ttl:           ttl,
		historyWindow: historyWindow,
	}
}

// GetOrCreate returns the conversation for id, creating (and its paired
// state) if absent. An empty id allocates a new conversation id.
//
// The returned pointers are shared with the store; callers outside this
// package are expected to only read immutable fields (e.g. Conversation.ID)
// from them, never to mutate Messages/State in place — every mutating
// operation this store exposes goes through a method that holds the
// entry's lock for the duration of the change.
func (s *ConversationStore) GetOrCreate(id string) (*Conversation, *State) {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversation, e.state
}

func (s *ConversationStore) getOrCreateEntry(id string) *entry {
	if id == "" {
		id = uuid.NewString()
	}
	if v, ok := s.entries.Get(id); ok {
		return v.(*entry)
	}

	now := time.Now()
	e := &entry{
		conversation: &Conversation{ID: id, CreatedAt: now, UpdatedAt: now},
		state:        &State{ConversationID: id, UpdatedAt: now},
	}
	s.entries.Set(id, e, s.ttl)
	return e
}

// AddMessage appends a message to the conversation, refreshing its TTL.
func (s *ConversationStore) AddMessage(id, role, content string) {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	e.conversation.Messages = append(e.conversation.Messages, Message{Role: role, Content: content, Timestamp: time.Now()})
	e.conversation.UpdatedAt = time.Now()
	e.mu.Unlock()
	s.touch(id)
}

// Recent returns a copy of the last historyWindow messages of the
// conversation — a copy, not the backing slice, so a caller holding the
// result can't observe or alias a concurrent AddMessage's append.
func (s *ConversationStore) Recent(id string) []Message {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.conversation.Messages
	if len(msgs) > s.historyWindow {
		msgs = msgs[len(msgs)-s.historyWindow:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// RecordToolCalls appends to a conversation's agent state.
func (s *ConversationStore) RecordToolCalls(id string, calls []ToolCallRecord) {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	e.state.ToolCalls = append(e.state.ToolCalls, calls...)
	e.state.UpdatedAt = time.Now()
	e.mu.Unlock()
	s.touch(id)
}

// RecordWorkflowTriggered notes that workflowID was started from this
// conversation.
func (s *ConversationStore) RecordWorkflowTriggered(id, workflowID string) {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	e.state.CurrentWorkflow = workflowID
	e.state.WorkflowHistory = append(e.state.WorkflowHistory, workflowID)
	e.state.UpdatedAt = time.Now()
	e.mu.Unlock()
	s.touch(id)
}

// Snapshot returns a point-in-time copy of id's conversation and state,
// taken under the entry's lock so a concurrent AddMessage/RecordToolCalls
// can't be marshalled mid-append. Save uses this rather than GetOrCreate's
// live pointers.
func (s *ConversationStore) Snapshot(id string) (*Conversation, *State) {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	conv := *e.conversation
	conv.Messages = make([]Message, len(e.conversation.Messages))
	copy(conv.Messages, e.conversation.Messages)

	st := *e.state
	st.ToolCalls = make([]ToolCallRecord, len(e.state.ToolCalls))
	copy(st.ToolCalls, e.state.ToolCalls)
	st.WorkflowHistory = make([]string, len(e.state.WorkflowHistory))
	copy(st.WorkflowHistory, e.state.WorkflowHistory)

	return &conv, &st
}

// touch refreshes id's TTL and LRU position after an in-place mutation of
// its entry's conversation or state pointers.
func (s *ConversationStore) touch(id string) {
	if v, ok := s.entries.Get(id); ok {
		s.entries.Set(id, v, s.ttl)
	}
}
