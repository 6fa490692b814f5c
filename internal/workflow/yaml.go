package workflow

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"agentflow/internal/errs"
)

// ParseDefinition decodes a workflow graph definition from data, dispatching
// on format ("yaml", "yml", or "json" — case-insensitive). This is the
// format POST /api/workflows/upload accepts, matching the upload endpoint's
// file-extension dispatch.
func ParseDefinition(data []byte, format string) (*Workflow, error) {
	var wf Workflow
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return nil, errs.Wrap(errs.KindValidation, "parse workflow YAML", err)
		}
	case "json":
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, errs.Wrap(errs.KindValidation, "parse workflow JSON", err)
		}
	default:
		return nil, errs.Newf(errs.KindValidation, "unsupported workflow file format %q", format)
	}
	return &wf, nil
}
