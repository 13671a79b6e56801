package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipHidden(rel string, isDir bool) bool {
	return strings.HasPrefix(rel, ".hidden")
}

func TestWatchedDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden", "deep"), 0755))

	w, err := New(Options{Root: root, Ignored: skipHidden})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{"", "src", "src/pkg"}, w.Watched())
}

func TestRunReportsChanges(t *testing.T) {
	root := t.TempDir()

	w, err := New(Options{Root: root, Ignored: skipHidden, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(paths []string) { batches <- paths })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0644))

	select {
	case paths := <-batches:
		assert.Contains(t, paths, "a.txt")
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()

	w, err := New(Options{Root: root, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 16)
	go w.Run(ctx, func(paths []string) { batches <- paths })

	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))

	select {
	case paths := <-batches:
		assert.Contains(t, paths, "sub")
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.Contains(t, w.Watched(), "sub")
}
