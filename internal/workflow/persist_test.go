package workflow

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadDefinitionsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	wf := &Workflow{
		ID:   "greet",
		Name: "Greeting",
		Nodes: []Node{
			{ID: "start", Kind: NodeStart},
			{ID: "end", Kind: NodeEnd},
		},
		Edges: []Edge{{From: "start", To: "end"}},
	}
	require.NoError(t, SaveDefinition(dir, wf))

	loaded, err := LoadDefinitions(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "greet", loaded[0].ID)
	assert.Len(t, loaded[0].Nodes, 2)
}

func TestLoadDefinitionsMissingDirIsNotError(t *testing.T) {
	loaded, err := LoadDefinitions(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestParseDefinition_YAML(t *testing.T) {
	doc := []byte(`
id: greet
name: Greeting
nodes:
  - id: start
    type: START
  - id: end
    type: END
edges:
  - source: start
    target: end
`)
	wf, err := ParseDefinition(doc, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "greet", wf.ID)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, NodeStart, wf.Nodes[0].Kind)
}

func TestParseDefinition_JSON(t *testing.T) {
	doc := []byte(`{"id":"greet","name":"Greeting","nodes":[{"id":"start","type":"START"},{"id":"end","type":"END"}],"edges":[{"source":"start","target":"end"}]}`)
	wf, err := ParseDefinition(doc, "json")
	require.NoError(t, err)
	assert.Equal(t, "greet", wf.ID)
}

func TestParseDefinition_UnsupportedFormatErrors(t *testing.T) {
	_, err := ParseDefinition([]byte("x"), "xml")
	require.Error(t, err)
}
