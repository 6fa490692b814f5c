package kb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateGetList(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, s.Create(KnowledgeBase{ID: "docs", Name: "Docs"}))

	got, ok := s.Get("docs")
	require.True(t, ok)
	assert.Equal(t, "Docs", got.Name)
	assert.Len(t, s.List(), 1)
}

func TestStore_CreateDuplicateIsConflict(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Create(KnowledgeBase{ID: "docs"}))

	err = s.Create(KnowledgeBase{ID: "docs"})
	require.Error(t, err)
}

func TestStore_DeleteUnknownIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	err = s.Delete("missing")
	require.Error(t, err)
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Create(KnowledgeBase{ID: "docs", Name: "Docs"}))

	reloaded, err := NewStore(dir, nil)
	require.NoError(t, err)
	got, ok := reloaded.Get("docs")
	require.True(t, ok)
	assert.Equal(t, "Docs", got.Name)
}

func TestStore_SearchUsesStubProviderByDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Create(KnowledgeBase{ID: "docs"}))

	results, err := s.Search(context.Background(), "docs", "query", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchUnknownKBIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "missing", "query", 5)
	require.Error(t, err)
}
