package merge

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"twig/internal/object"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTable(t *testing.T) {
	tests := []struct {
		name               string
		base, ours, theirs string
		want               Outcome
	}{
		{"untouched", "a", "a", "a", KeepOurs},
		{"both deleted", "a", "", "", KeepOurs},
		{"absent everywhere", "", "", "", KeepOurs},
		{"only ours modified", "a", "b", "a", KeepOurs},
		{"only ours deleted", "a", "", "a", KeepOurs},
		{"only ours added", "", "b", "", KeepOurs},
		{"only theirs modified", "a", "a", "c", TakeTheirs},
		{"only theirs deleted", "a", "a", "", TakeTheirs},
		{"only theirs added", "", "", "c", TakeTheirs},
		{"same change both sides", "a", "b", "b", KeepOurs},
		{"same add both sides", "", "b", "b", KeepOurs},
		{"divergent modifications", "a", "b", "c", Conflict},
		{"ours modified theirs deleted", "a", "b", "", Conflict},
		{"ours deleted theirs modified", "a", "", "c", Conflict},
		{"divergent adds", "", "b", "c", Conflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.base, tt.ours, tt.theirs))
			// deterministic
			assert.Equal(t, Resolve(tt.base, tt.ours, tt.theirs), Resolve(tt.base, tt.ours, tt.theirs))
		})
	}
}

func TestMergePlan(t *testing.T) {
	base := map[string]string{"keep": "k", "ours-del": "d", "theirs-mod": "m", "clash": "c"}
	ours := map[string]string{"keep": "k", "theirs-mod": "m", "clash": "c1", "new-ours": "n"}
	theirs := map[string]string{"keep": "k", "ours-del": "d", "theirs-mod": "m2", "clash": "c2", "new-theirs": "t"}

	plan := Merge(base, ours, theirs)

	assert.Equal(t, map[string]string{
		"keep":       "k",
		"theirs-mod": "m2",
		"new-ours":   "n",
		"new-theirs": "t",
	}, plan.Files)
	assert.Equal(t, []string{"clash"}, plan.Conflicts)
}

func TestConflictContent(t *testing.T) {
	tests := []struct {
		name         string
		ours, theirs []byte
		want         string
	}{
		{"both sides", []byte("z\n"), []byte("y\n"), "<<<<<<< HEAD\nz\n=======\ny\n>>>>>>>\n"},
		{"ours missing", nil, []byte("y\n"), "<<<<<<< HEAD\n=======\ny\n>>>>>>>\n"},
		{"theirs missing", []byte("z\n"), nil, "<<<<<<< HEAD\nz\n=======\n>>>>>>>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConflictContent(tt.ours, tt.theirs)
			assert.Equal(t, tt.want, string(got))
			assert.True(t, bytes.HasPrefix(got, []byte("<<<<<<< HEAD\n")))
			assert.True(t, bytes.HasSuffix(got, []byte(">>>>>>>\n")))
			assert.Equal(t, 1, bytes.Count(got, []byte("=======\n")))
		})
	}
}

func TestSameFiles(t *testing.T) {
	assert.True(t, SameFiles(map[string]string{"a": "1"}, map[string]string{"a": "1"}))
	assert.True(t, SameFiles(nil, map[string]string{}))
	assert.False(t, SameFiles(map[string]string{"a": "1"}, map[string]string{"a": "2"}))
	assert.False(t, SameFiles(map[string]string{"a": "1"}, map[string]string{"b": "1"}))
}

// graph is an in-memory CommitReader.
type graph struct {
	commits map[string]*object.Commit
	names   map[string]string
	clock   int64
}

func newGraph() *graph {
	return &graph{commits: map[string]*object.Commit{}, names: map[string]string{}}
}

func (g *graph) add(t *testing.T, name string, parents ...string) string {
	var p1, p2 string
	if len(parents) > 0 {
		p1 = g.names[parents[0]]
	}
	if len(parents) > 1 {
		p2 = g.names[parents[1]]
	}
	g.clock++
	c, err := object.NewCommit(p1, p2, name, time.Unix(g.clock, 0), nil)
	require.NoError(t, err)
	g.commits[c.ID()] = c
	g.names[name] = c.ID()
	return c.ID()
}

func (g *graph) Commit(id string) (*object.Commit, error) {
	c, ok := g.commits[id]
	if !ok {
		return nil, fmt.Errorf("no commit %s", id)
	}
	return c, nil
}

func TestSplitPoint(t *testing.T) {
	t.Run("linear history", func(t *testing.T) {
		g := newGraph()
		root := g.add(t, "root")
		a := g.add(t, "a", "root")
		b := g.add(t, "b", "a")

		got, err := SplitPoint(g, b, a)
		require.NoError(t, err)
		assert.Equal(t, a, got)

		got, err = SplitPoint(g, a, b)
		require.NoError(t, err)
		assert.Equal(t, a, got)

		got, err = SplitPoint(g, root, b)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("simple fork", func(t *testing.T) {
		g := newGraph()
		g.add(t, "root")
		base := g.add(t, "base", "root")
		left := g.add(t, "left", "base")
		right := g.add(t, "right", "base")

		got, err := SplitPoint(g, left, right)
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("after a previous merge", func(t *testing.T) {
		// root - a - m (merge of a and b) - c
		//          \ b ---------------- d
		g := newGraph()
		g.add(t, "root")
		g.add(t, "a", "root")
		b := g.add(t, "b", "root")
		g.add(t, "m", "a", "b")
		c := g.add(t, "c", "m")
		d := g.add(t, "d", "b")

		got, err := SplitPoint(g, c, d)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("skips a common ancestor that is below another", func(t *testing.T) {
		// Walking back from the given commit meets root (its first parent)
		// before y, but root is an ancestor of y.
		//
		// root - x - y - z   current
		//   |         |
		//   +-------- g       given, parents root and y
		g := newGraph()
		g.add(t, "root")
		g.add(t, "x", "root")
		g.add(t, "y", "x")
		cur := g.add(t, "z", "y")
		given := g.add(t, "g", "root", "y")

		got, err := SplitPoint(g, cur, given)
		require.NoError(t, err)
		assert.Equal(t, g.names["y"], got)
	})

	t.Run("criss-cross picks the most recent base", func(t *testing.T) {
		g := newGraph()
		g.add(t, "root")
		g.add(t, "a", "root")
		g.add(t, "b", "root")
		g.add(t, "m1", "a", "b")
		g.add(t, "m2", "b", "a")
		cur := g.add(t, "c", "m1")
		given := g.add(t, "d", "m2")

		got, err := SplitPoint(g, cur, given)
		require.NoError(t, err)
		assert.Equal(t, g.names["b"], got)
	})

	t.Run("unrelated histories", func(t *testing.T) {
		g := newGraph()
		a := g.add(t, "a")
		b := g.add(t, "b")
		_, err := SplitPoint(g, a, b)
		assert.Error(t, err)
	})
}

func TestIsAncestor(t *testing.T) {
	g := newGraph()
	root := g.add(t, "root")
	a := g.add(t, "a", "root")

	ok, err := IsAncestor(g, root, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsAncestor(g, a, root)
	require.NoError(t, err)
	assert.False(t, ok)
}
