package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcleanup "github.com/danbao/testring-sub000/internal/application/cleanup"
	"github.com/danbao/testring-sub000/internal/infrastructure/persistence/registry"
)

func TestStore_ReadMissingFileReturnsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	s := registry.New(path)

	doc, err := s.Read()
	require.NoError(t, err)
	assert.Empty(t, doc.PIDs)
}

func TestStore_WriteThenReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s := registry.New(path)

	require.NoError(t, s.Write(registry.Document{PIDs: []int{1, 2, 3}}))

	doc, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, doc.PIDs)
	assert.Equal(t, os.Getpid(), doc.WriterPID)
	assert.NotZero(t, doc.WrittenAt)
}

func TestStore_WriteLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	s := registry.New(path)

	require.NoError(t, s.Write(registry.Document{PIDs: []int{9}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "registry.json", entries[0].Name())
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s := registry.New(path)

	require.NoError(t, s.Write(registry.Document{PIDs: []int{1}}))
	require.NoError(t, s.Remove())
	require.NoError(t, s.Remove()) // removing an already-gone file is not an error

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAdapter_SatisfiesCleanupStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	a := registry.NewAdapter(registry.New(path))

	require.NoError(t, a.Write(appcleanup.Document{PIDs: []int{11, 12}}))

	doc, err := a.Read()
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12}, doc.PIDs)

	require.NoError(t, a.Remove())
}
