package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStore_SaveAndLoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewConversationStore(10, time.Hour, 10)
	s.AddMessage("abc", "user", "hello")
	s.RecordWorkflowTriggered("abc", "wf-1")
	require.NoError(t, s.Save(dir, "abc"))

	reloaded := NewConversationStore(10, time.Hour, 10)
	require.NoError(t, reloaded.LoadAll(dir))

	conv, state := reloaded.GetOrCreate("abc")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello", conv.Messages[0].Content)
	assert.Equal(t, "wf-1", state.CurrentWorkflow)
}

func TestConversationStore_LoadAllMissingDirIsNotError(t *testing.T) {
	s := NewConversationStore(10, time.Hour, 10)
	err := s.LoadAll(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
}
