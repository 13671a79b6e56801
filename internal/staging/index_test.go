package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx, err := Load(path)
	require.NoError(t, err)
	assert.True(t, idx.IsEmpty())

	idx.Stage("a.txt", "blob-a")
	idx.Remove("gone.txt")
	require.NoError(t, idx.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a.txt":"blob-a","gone.txt":null}`, string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, loaded.Staged())
	assert.Equal(t, []string{"gone.txt"}, loaded.Removed())

	id, removed, ok := loaded.Entry("gone.txt")
	assert.True(t, ok)
	assert.True(t, removed)
	assert.Equal(t, Tombstone, id)

	_, _, ok = loaded.Entry("missing")
	assert.False(t, ok)
}

func TestIndexCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	idx := &Index{entries: map[string]string{}}
	idx.Stage("new.txt", "n")
	idx.Stage("changed.txt", "c2")
	idx.Remove("old.txt")

	base := map[string]string{"changed.txt": "c1", "old.txt": "o", "kept.txt": "k"}
	got := idx.Apply(base)

	assert.Equal(t, map[string]string{"new.txt": "n", "changed.txt": "c2", "kept.txt": "k"}, got)
	assert.Equal(t, "c1", base["changed.txt"])
}

func TestSnapshotRestore(t *testing.T) {
	idx := &Index{entries: map[string]string{}}
	idx.Stage("a", "1")
	snap := idx.Snapshot()

	idx.Clear()
	idx.Stage("b", "2")
	idx.Restore(snap)
	assert.Equal(t, map[string]string{"a": "1"}, idx.Snapshot())

	snap["c"] = "3"
	assert.Equal(t, 1, idx.Len())

	idx.Unstage("a")
	assert.True(t, idx.IsEmpty())
}
