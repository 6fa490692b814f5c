package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStore_GetOrCreateAllocatesIDWhenEmpty(t *testing.T) {
	s := NewConversationStore(10, time.Minute, 5)
	conv, state := s.GetOrCreate("")
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, conv.ID, state.ConversationID)
}

func TestConversationStore_GetOrCreateIsStableForSameID(t *testing.T) {
	s := NewConversationStore(10, time.Minute, 5)
	conv1, _ := s.GetOrCreate("abc")
	conv2, _ := s.GetOrCreate("abc")
	assert.Same(t, conv1, conv2)
}

func TestConversationStore_AddMessageAppendsToHistory(t *testing.T) {
	s := NewConversationStore(10, time.Minute, 5)
	s.AddMessage("abc", "user", "hello")
	s.AddMessage("abc", "assistant", "hi there")

	conv, _ := s.GetOrCreate("abc")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hello", conv.Messages[0].Content)
	assert.Equal(t, "assistant", conv.Messages[1].Role)
}

func TestConversationStore_RecentTruncatesToWindow(t *testing.T) {
	s := NewConversationStore(10, time.Minute, 2)
	s.AddMessage("abc", "user", "one")
	s.AddMessage("abc", "assistant", "two")
	s.AddMessage("abc", "user", "three")

	recent := s.Recent("abc")
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "three", recent[1].Content)
}

func TestConversationStore_RecordToolCallsAndWorkflowTriggered(t *testing.T) {
	s := NewConversationStore(10, time.Minute, 5)
	s.RecordToolCalls("abc", []ToolCallRecord{{Name: "search_workflows"}})
	s.RecordWorkflowTriggered("abc", "wf-1")

	_, state := s.GetOrCreate("abc")
	require.Len(t, state.ToolCalls, 1)
	assert.Equal(t, "search_workflows", state.ToolCalls[0].Name)
	assert.Equal(t, "wf-1", state.CurrentWorkflow)
	assert.Equal(t, []string{"wf-1"}, state.WorkflowHistory)
}

func TestConversationStore_ConversationAndStateStayPairedUnderEviction(t *testing.T) {
	s := NewConversationStore(1, time.Minute, 5)
	s.AddMessage("first", "user", "hi")
	s.RecordWorkflowTriggered("first", "wf-1")

	// pushes "first" out of the size-1 cache
	s.AddMessage("second", "user", "hello")

	conv, state := s.GetOrCreate("first")
	// a fresh entry must be created, never a half-populated leftover of
	// either half of the old pair
	assert.Empty(t, conv.Messages)
	assert.Empty(t, state.WorkflowHistory)
}

func TestConversationStore_TouchRefreshesTTL(t *testing.T) {
	s := NewConversationStore(10, 200*time.Millisecond, 5)
	s.AddMessage("abc", "user", "hi")
	time.Sleep(120 * time.Millisecond)
	// AddMessage calls touch internally, pushing the expiry another 200ms
	// out; without that refresh the entry would have expired by the
	// GetOrCreate below and a fresh, empty conversation would come back.
	s.AddMessage("abc", "user", "again")
	time.Sleep(120 * time.Millisecond)
	conv, _ := s.GetOrCreate("abc")
	assert.Len(t, conv.Messages, 2)
}
