package agent

import (
	"encoding/json"
	"os"
	"path/filepath"

	"agentflow/internal/errs"
)

// snapshot is the on-disk representation of one conversation/state pair,
// matching the documented ./storage/conversations/*.json layout.
type snapshot struct {
	Conversation *Conversation `json:"conversation"`
	State        *State        `json:"state"`
}

// Save writes id's conversation and state to <dir>/<id>.json. The store
// never persists on its own, neither on a cache touch nor on eviction, and
// the chat handlers do not call Save; a snapshot exists only where a caller
// invokes Save explicitly. The bounded in-memory cache is the source of
// truth during a process's lifetime; persistence only survives a restart.
func (s *ConversationStore) Save(dir, id string) error {
	conv, state := s.Snapshot(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.KindInternal, "create conversation storage directory", err)
	}
	data, err := json.MarshalIndent(snapshot{Conversation: conv, State: state}, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, "marshal conversation snapshot", err)
	}
	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindInternal, "write conversation snapshot", err)
	}
	return nil
}

// LoadAll preloads every persisted conversation snapshot in dir into the
// store, for restoring recent history after a process restart. A missing
// directory is not an error.
func (s *ConversationStore) LoadAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindInternal, "read conversation storage directory", err)
	}

	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return errs.Wrap(errs.KindInternal, "read conversation snapshot", err)
		}
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return errs.Wrap(errs.KindInternal, "unmarshal conversation snapshot", err)
		}
		if snap.Conversation == nil {
			continue
		}
		s.entries.Set(snap.Conversation.ID, &entry{conversation: snap.Conversation, state: snap.State}, s.ttl)
	}
	return nil
}
