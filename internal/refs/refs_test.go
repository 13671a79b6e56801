package refs

import (
	"os"
	"path/filepath"
	"testing"

	"twig/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	c1 := utils.HashContent([]byte("c1"))
	c2 := utils.HashContent([]byte("c2"))

	require.NoError(t, s.Init("master", c1))

	t.Run("HEAD file layout", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "HEAD"))
		require.NoError(t, err)
		assert.Equal(t, "ref: refs/heads/master\n", string(data))

		data, err = os.ReadFile(filepath.Join(dir, "refs", "heads", "master"))
		require.NoError(t, err)
		assert.Equal(t, c1, string(data))
	})

	t.Run("head commit", func(t *testing.T) {
		branch, id, err := s.HeadCommit()
		require.NoError(t, err)
		assert.Equal(t, "master", branch)
		assert.Equal(t, c1, id)
	})

	t.Run("create and delete", func(t *testing.T) {
		require.NoError(t, s.CreateBranch("other", c2))
		assert.ErrorIs(t, s.CreateBranch("other", c1), ErrBranchExists)

		names, err := s.BranchNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"master", "other"}, names)

		require.NoError(t, s.DeleteBranch("other"))
		assert.ErrorIs(t, s.DeleteBranch("other"), ErrBranchNotFound)
		_, err = s.Branch("other")
		assert.ErrorIs(t, err, ErrBranchNotFound)
	})

	t.Run("switch head", func(t *testing.T) {
		require.NoError(t, s.SetBranch("dev", c2))
		require.NoError(t, s.SetHead("dev"))
		branch, id, err := s.HeadCommit()
		require.NoError(t, err)
		assert.Equal(t, "dev", branch)
		assert.Equal(t, c2, id)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		assert.ErrorIs(t, s.SetBranch("a/b", c1), ErrInvalidName)
		assert.ErrorIs(t, s.SetBranch("..", c1), ErrInvalidName)
		assert.Error(t, s.SetBranch("ok", "nothash"))
		assert.False(t, s.HasBranch("../HEAD"))
	})
}

func TestCorruptHead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HEAD"), []byte("garbage"), 0644))

	_, err := New(dir).Head()
	assert.ErrorIs(t, err, ErrCorruptHead)
}
