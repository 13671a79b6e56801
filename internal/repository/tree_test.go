package repository

import (
	"os"
	"path/filepath"
	"testing"

	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/merge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutBranchRestoresFiles(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "c1", "f.txt", "original\n", "dir/only-master.txt", "m")

	require.NoError(t, r.Branch("other"))
	require.NoError(t, r.CheckoutBranch("other"))
	require.NoError(t, r.Rm("dir/only-master.txt"))
	commitFiles(t, r, "c2", "f.txt", "changed\n", "new.txt", "n")

	require.NoError(t, r.CheckoutBranch("master"))
	assert.Equal(t, "original\n", readFile(t, r, "f.txt"))
	assert.Equal(t, "m", readFile(t, r, "dir/only-master.txt"))
	assert.False(t, fileExists(r, "new.txt"))

	require.NoError(t, r.CheckoutBranch("other"))
	assert.Equal(t, "changed\n", readFile(t, r, "f.txt"))
	assert.NoDirExists(t, filepath.Join(r.Root, "dir"))

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "other", branch)
}

func TestCheckoutBranchErrors(t *testing.T) {
	r := newRepo(t)
	requireNotFound(t, r.CheckoutBranch("nope"), "No such branch exists.")
	requireUserError(t, r.CheckoutBranch("master"), "No need to checkout the current branch.")
}

func TestCheckoutBranchClearsStaging(t *testing.T) {
	r := newRepo(t)
	c1 := commitFiles(t, r, "c1", "a.txt", "a")
	require.NoError(t, r.Branch("other"))

	require.NoError(t, r.Rm("a.txt"))
	require.NoError(t, r.CheckoutBranch("other"))

	assert.True(t, r.index.IsEmpty())
	assert.Equal(t, "a", readFile(t, r, "a.txt"))
	id, err := r.refs.Branch("other")
	require.NoError(t, err)
	assert.Equal(t, c1.ID(), id)
}

func TestCheckoutFile(t *testing.T) {
	r := newRepo(t)
	c1 := commitFiles(t, r, "c1", "a.txt", "v1", "dir/x", "x1", "dir/y", "y1")
	commitFiles(t, r, "c2", "a.txt", "v2", "dir/x", "x2")

	t.Run("single file by prefix", func(t *testing.T) {
		require.NoError(t, r.CheckoutFile(c1.ID()[:8], "a.txt"))
		assert.Equal(t, "v1", readFile(t, r, "a.txt"))
		assert.True(t, r.index.IsEmpty())

		branch, id, err := r.refs.HeadCommit()
		require.NoError(t, err)
		assert.Equal(t, "master", branch)
		assert.NotEqual(t, c1.ID(), id)
	})

	t.Run("directory scope", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(r.Root, "dir", "y")))
		require.NoError(t, r.CheckoutFile(c1.ID(), "./dir/"))
		assert.Equal(t, "x1", readFile(t, r, "dir/x"))
		assert.Equal(t, "y1", readFile(t, r, "dir/y"))
	})

	t.Run("from the current commit", func(t *testing.T) {
		writeFile(t, r, "a.txt", "scribble")
		require.NoError(t, r.CheckoutPath("a.txt"))
		assert.Equal(t, "v2", readFile(t, r, "a.txt"))
	})

	t.Run("errors", func(t *testing.T) {
		requireNotFound(t, r.CheckoutFile("ffffffff", "a.txt"), "No commit with that id exists.")
		requireUserError(t, r.CheckoutFile(c1.ID(), "missing.txt"), "File does not exist in that commit.")
		requireUserError(t, r.CheckoutPath("dir/zzz"), "File does not exist in that commit.")
	})
}

func TestCheckoutFileSearchesAllBranches(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "c1", "a.txt", "a")
	require.NoError(t, r.Branch("side"))
	require.NoError(t, r.CheckoutBranch("side"))
	side := commitFiles(t, r, "side", "s.txt", "from side")
	require.NoError(t, r.CheckoutBranch("master"))

	require.NoError(t, r.CheckoutFile(side.ID()[:12], "s.txt"))
	assert.Equal(t, "from side", readFile(t, r, "s.txt"))
}

func TestBranchAndRmBranch(t *testing.T) {
	r := newRepo(t)
	c := commitFiles(t, r, "c1", "a.txt", "a")

	require.NoError(t, r.Branch("feature"))
	id, err := r.refs.Branch("feature")
	require.NoError(t, err)
	assert.Equal(t, c.ID(), id)

	requireUserError(t, r.Branch("feature"), "A branch with that name already exists.")
	requireUserError(t, r.Branch("a/b"), `Invalid branch name "a/b".`)

	requireUserError(t, r.RmBranch("master"), "Cannot remove the current branch.")
	requireNotFound(t, r.RmBranch("ghost"), "A branch with that name does not exist.")

	require.NoError(t, r.RmBranch("feature"))
	assert.False(t, r.refs.HasBranch("feature"))

	// the commit survives its branch
	_, err = r.objects.Commit(c.ID())
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	r := newRepo(t)
	c1 := commitFiles(t, r, "c1", "a.txt", "one")
	commitFiles(t, r, "c2", "a.txt", "two", "b.txt", "b")
	writeFile(t, r, "b.txt", "b") // unchanged

	got, err := r.Reset(c1.ID()[:6])
	require.NoError(t, err)
	assert.Equal(t, c1.ID(), got.ID())

	assert.Equal(t, "one", readFile(t, r, "a.txt"))
	assert.False(t, fileExists(r, "b.txt"))
	id, err := r.refs.Branch("master")
	require.NoError(t, err)
	assert.Equal(t, c1.ID(), id)

	_, err = r.Reset("0000000000")
	requireNotFound(t, err, "No commit with that id exists.")
}

func TestSafetyCheckAborts(t *testing.T) {
	setup := func(t *testing.T) (*Repository, string) {
		r := newRepo(t)
		commitFiles(t, r, "c1", "a.txt", "a")
		require.NoError(t, r.Branch("f"))
		require.NoError(t, r.CheckoutBranch("f"))
		c2 := commitFiles(t, r, "c2", "b.txt", "theirs")
		require.NoError(t, r.CheckoutBranch("master"))
		commitFiles(t, r, "c3", "a.txt", "a2")
		writeFile(t, r, "b.txt", "mine, untracked")
		return r, c2.ID()
	}

	ops := map[string]func(r *Repository, c2 string) error{
		"checkout": func(r *Repository, _ string) error { return r.CheckoutBranch("f") },
		"reset": func(r *Repository, c2 string) error {
			_, err := r.Reset(c2)
			return err
		},
		"merge": func(r *Repository, _ string) error {
			_, err := r.Merge("f")
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			r, c2 := setup(t)
			before := stateOf(t, r)
			records := r.history.Len()

			err := op(r, c2)
			requireUserError(t, err, msgUnsafeFiles)
			assert.Equal(t, []UnsafeFile{{Path: "b.txt", State: "untracked"}}, errors.Details(err))

			assert.Equal(t, before, stateOf(t, r))
			assert.Equal(t, records, r.history.Len())
		})
	}
}

func TestSafetyCheckAllowsMatchingContent(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "c1", "a.txt", "1")
	require.NoError(t, r.Branch("f"))
	require.NoError(t, r.CheckoutBranch("f"))
	commitFiles(t, r, "c2", "a.txt", "2", "b.txt", "B")
	require.NoError(t, r.CheckoutBranch("master"))

	// both files already hold the incoming content
	writeFile(t, r, "a.txt", "2")
	writeFile(t, r, "b.txt", "B")
	require.NoError(t, r.CheckoutBranch("f"))

	// a modified tracked file that matches neither side blocks
	writeFile(t, r, "a.txt", "local edit")
	err := r.CheckoutBranch("master")
	requireUserError(t, err, msgUnsafeFiles)
	assert.Equal(t, []UnsafeFile{{Path: "a.txt", State: "modified"}}, errors.Details(err))
}

func TestMergeConflictScenario(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "c1", "a.txt", "x\n")
	require.NoError(t, r.Branch("f"))
	require.NoError(t, r.CheckoutBranch("f"))
	c2 := commitFiles(t, r, "c2", "a.txt", "y\n")
	require.NoError(t, r.CheckoutBranch("master"))
	c3 := commitFiles(t, r, "c3", "a.txt", "z\n")

	res, err := r.Merge("f")
	require.NoError(t, err)
	assert.Equal(t, history.MergeNormal, res.Kind)
	assert.Equal(t, []string{"a.txt"}, res.Conflicts)

	c := res.Commit
	assert.Equal(t, c3.ID(), c.Parent1)
	assert.Equal(t, c2.ID(), c.Parent2)
	assert.Equal(t, "Merged f into master.", c.Message)

	blob, err := r.objects.Blob(c.Files["a.txt"])
	require.NoError(t, err)
	want := "<<<<<<< HEAD\nz\n=======\ny\n>>>>>>>\n"
	assert.Equal(t, want, string(blob.Content))
	assert.Equal(t, want, readFile(t, r, "a.txt"))

	id, err := r.refs.Branch("master")
	require.NoError(t, err)
	assert.Equal(t, c.ID(), id)
	assert.True(t, r.index.IsEmpty())
}

func TestMergeClean(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "base", "shared.txt", "s", "ours.txt", "o", "theirs.txt", "t", "doomed.txt", "d")
	require.NoError(t, r.Branch("f"))
	require.NoError(t, r.CheckoutBranch("f"))
	require.NoError(t, r.Rm("doomed.txt"))
	given := commitFiles(t, r, "theirs", "theirs.txt", "t2", "added.txt", "new")
	require.NoError(t, r.CheckoutBranch("master"))
	commitFiles(t, r, "ours", "ours.txt", "o2")

	res, err := r.Merge("f")
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, given.ID(), res.Commit.Parent2)

	assert.Equal(t, "s", readFile(t, r, "shared.txt"))
	assert.Equal(t, "o2", readFile(t, r, "ours.txt"))
	assert.Equal(t, "t2", readFile(t, r, "theirs.txt"))
	assert.Equal(t, "new", readFile(t, r, "added.txt"))
	assert.False(t, fileExists(r, "doomed.txt"))
	assert.Len(t, res.Commit.Files, 4)
}

func TestMergeAncestorAndFastForward(t *testing.T) {
	r := newRepo(t)
	c1 := commitFiles(t, r, "c1", "a.txt", "1")
	require.NoError(t, r.Branch("f"))
	require.NoError(t, r.CheckoutBranch("f"))
	c2 := commitFiles(t, r, "c2", "a.txt", "2")

	before, err := r.GlobalLog()
	require.NoError(t, err)

	// master is behind f: merging it into f changes nothing
	res, err := r.Merge("master")
	require.NoError(t, err)
	assert.Equal(t, history.MergeNoNeed, res.Kind)
	id, err := r.refs.Branch("f")
	require.NoError(t, err)
	assert.Equal(t, c2.ID(), id)

	require.NoError(t, r.CheckoutBranch("master"))
	res, err = r.Merge("f")
	require.NoError(t, err)
	assert.Equal(t, history.MergeFastForward, res.Kind)
	assert.Equal(t, c1.ID(), res.Base)

	id, err = r.refs.Branch("master")
	require.NoError(t, err)
	assert.Equal(t, c2.ID(), id)
	assert.Equal(t, "2", readFile(t, r, "a.txt"))

	after, err := r.GlobalLog()
	require.NoError(t, err)
	assert.Len(t, after, len(before), "no new commit")
}

func TestMergeErrors(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "c1", "a.txt", "1")
	require.NoError(t, r.Branch("f"))

	_, err := r.Merge("master")
	requireUserError(t, err, "Cannot merge a branch with itself.")
	_, err = r.Merge("ghost")
	requireNotFound(t, err, "A branch with that name does not exist.")

	writeFile(t, r, "b.txt", "b")
	require.NoError(t, r.Add("b.txt"))
	_, err = r.Merge("f")
	requireUserError(t, err, "You have uncommitted changes.")
}

func TestMergeAfterPreviousMerge(t *testing.T) {
	r := newRepo(t)
	commitFiles(t, r, "c1", "a.txt", "1", "b.txt", "1")
	require.NoError(t, r.Branch("f"))
	require.NoError(t, r.CheckoutBranch("f"))
	commitFiles(t, r, "f1", "b.txt", "f1")
	require.NoError(t, r.CheckoutBranch("master"))
	commitFiles(t, r, "m1", "a.txt", "m1")

	first, err := r.Merge("f")
	require.NoError(t, err)
	require.Empty(t, first.Conflicts)

	require.NoError(t, r.CheckoutBranch("f"))
	commitFiles(t, r, "f2", "b.txt", "f2")
	require.NoError(t, r.CheckoutBranch("master"))

	// the split point is now f1, so only f's second change comes across
	res, err := r.Merge("f")
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "m1", readFile(t, r, "a.txt"))
	assert.Equal(t, "f2", readFile(t, r, "b.txt"))

	ok, err := merge.IsAncestor(r.objects, first.Commit.ID(), res.Commit.ID())
	require.NoError(t, err)
	assert.True(t, ok)
}
