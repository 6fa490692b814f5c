package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateGetList(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	created, err := s.Create(Template{ID: "sys", Name: "System", Content: "hello {name}", IsActive: true})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, ok := s.Get("sys")
	require.True(t, ok)
	assert.Equal(t, "hello {name}", got.Content)
	assert.Len(t, s.List(""), 1)
}

func TestStore_CreateDuplicateIsConflict(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create(Template{ID: "sys"})
	require.NoError(t, err)

	_, err = s.Create(Template{ID: "sys"})
	require.Error(t, err)
}

func TestStore_SetDefaultClearsPreviousDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create(Template{ID: "a", IsDefault: true, IsActive: true})
	require.NoError(t, err)
	_, err = s.Create(Template{ID: "b", IsDefault: true, IsActive: true})
	require.NoError(t, err)

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	assert.False(t, a.IsDefault)
	assert.True(t, b.IsDefault)

	def, ok := s.Default("")
	require.True(t, ok)
	assert.Equal(t, "b", def.ID)
}

func TestStore_UpdateUnknownIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Update("missing", Template{})
	require.Error(t, err)
}

func TestStore_DeleteUnknownIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.Error(t, s.Delete("missing"))
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create(Template{ID: "sys", Content: "hi"})
	require.NoError(t, err)

	reloaded, err := NewStore(dir)
	require.NoError(t, err)
	got, ok := reloaded.Get("sys")
	require.True(t, ok)
	assert.Equal(t, "hi", got.Content)
}

func TestTemplate_RenderSubstitutesKnownVariables(t *testing.T) {
	tpl := Template{Content: "Hello {name}, you have {count} items"}
	out := tpl.Render(map[string]string{"name": "Ada", "count": "3"})
	assert.Equal(t, "Hello Ada, you have 3 items", out)
}

func TestTemplate_RenderLeavesUnknownVariablesUntouched(t *testing.T) {
	tpl := Template{Content: "Hello {name}"}
	out := tpl.Render(nil)
	assert.Equal(t, "Hello {name}", out)
}

func TestStore_IncrementUsage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create(Template{ID: "sys"})
	require.NoError(t, err)

	require.NoError(t, s.IncrementUsage("sys"))
	got, _ := s.Get("sys")
	assert.Equal(t, 1, got.UsageCount)
}
