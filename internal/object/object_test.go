package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobID(t *testing.T) {
	a := NewBlob([]byte("hello\n"))
	b := NewBlob([]byte("hello\n"))
	c := NewBlob([]byte("hello"))

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Equal(t, KindBlob, a.Kind())
	assert.Len(t, a.ID(), 64)
}

func TestCommitIDIsDeterministic(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 42, time.FixedZone("X", 3600))
	files := map[string]string{"b.txt": NewBlob([]byte("b")).ID(), "a.txt": NewBlob([]byte("a")).ID()}

	c1, err := NewCommit("p1", "", "add files", ts, files)
	require.NoError(t, err)
	c2, err := NewCommit("p1", "", "add files", ts.UTC(), map[string]string{"a.txt": files["a.txt"], "b.txt": files["b.txt"]})
	require.NoError(t, err)
	assert.Equal(t, c1.ID(), c2.ID())

	t.Run("every field contributes", func(t *testing.T) {
		variants := []struct {
			name        string
			p1, p2, msg string
			ts          time.Time
			files       map[string]string
		}{
			{"parent1", "p2", "", "add files", ts, files},
			{"parent2", "p1", "x", "add files", ts, files},
			{"message", "p1", "", "other", ts, files},
			{"timestamp", "p1", "", "add files", ts.Add(time.Nanosecond), files},
			{"files", "p1", "", "add files", ts, map[string]string{"a.txt": files["a.txt"]}},
		}
		for _, v := range variants {
			c, err := NewCommit(v.p1, v.p2, v.msg, v.ts, v.files)
			require.NoError(t, err)
			assert.NotEqual(t, c1.ID(), c.ID(), v.name)
		}
	})

	t.Run("copies file map", func(t *testing.T) {
		files["c.txt"] = "x"
		_, ok := c1.Files["c.txt"]
		assert.False(t, ok)
	})
}

func TestRootCommit(t *testing.T) {
	root := NewRootCommit()
	assert.True(t, root.IsRoot())
	assert.False(t, root.IsMerge())
	assert.True(t, root.Timestamp.Equal(Epoch))
	assert.Equal(t, InitialMessage, root.Message)
	assert.Empty(t, root.Files)
	assert.Equal(t, root.ID(), NewRootCommit().ID())
}

func TestCodec(t *testing.T) {
	t.Run("blob", func(t *testing.T) {
		blob := NewBlob([]byte("line\n"))
		data, err := Encode(blob)
		require.NoError(t, err)
		assert.Equal(t, byte(KindBlob), data[0])

		obj, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, blob.ID(), obj.ID())
		assert.Equal(t, []byte("line\n"), obj.(*Blob).Content)
	})

	t.Run("commit survives a round trip with the same id", func(t *testing.T) {
		c, err := NewCommit("a", "b", "Merged x into y.", time.Now(), map[string]string{"f": "1"})
		require.NoError(t, err)
		data, err := Encode(c)
		require.NoError(t, err)

		obj, err := Decode(data)
		require.NoError(t, err)
		got := obj.(*Commit)
		assert.Equal(t, c.ID(), got.ID())
		assert.True(t, got.IsMerge())
		assert.Equal(t, []string{"a", "b"}, got.Parents())
	})

	t.Run("corrupt", func(t *testing.T) {
		_, err := Decode(nil)
		assert.ErrorIs(t, err, ErrCorrupt)
		_, err = Decode([]byte{9, 1, 2})
		assert.ErrorIs(t, err, ErrCorrupt)
		_, err = Decode([]byte{byte(KindCommit), '{'})
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}
