package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"

	"agentflow/internal/errs"
)

// SaveDefinition writes wf's registered definition as
// <dir>/<wf.ID>.json, matching the documented
// ./storage/workflows/*.json persistent-state layout. Only the graph
// (Nodes, Edges, metadata) is meaningful here; per-execution state is not
// persisted since Execute always runs against a private clone.
func SaveDefinition(dir string, wf *Workflow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.KindInternal, "create workflow storage directory", err)
	}
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, "marshal workflow definition", err)
	}
	path := filepath.Join(dir, wf.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindInternal, "write workflow definition", err)
	}
	return nil
}

// LoadDefinitions reads every *.json file in dir as a workflow definition,
// for preloading the engine at startup. A missing directory yields no
// definitions and no error.
func LoadDefinitions(dir string) ([]*Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInternal, "read workflow storage directory", err)
	}

	var out []*Workflow
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, "read workflow definition", err)
		}
		var wf Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "unmarshal workflow definition", err)
		}
		out = append(out, &wf)
	}
	return out, nil
}
