// internal/workspace/local.go
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"twig/internal/ignore"
	"twig/shared/utils"
)

// RepoDirName is the metadata directory at the repository root.
const RepoDirName = ".twig"

var ErrRootNotFound = errors.New("not in an initialized twig directory")

// FindRoot searches startDir and its parents for the repository root.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, RepoDirName)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrRootNotFound
}

// LocalWorkspace is the working directory of a repository. Paths taken and
// returned are slash separated and relative to Root. The metadata directory,
// the rules file and ignored paths are invisible to it.
type LocalWorkspace struct {
	Root    string
	matcher *ignore.Matcher
}

func NewLocalWorkspace(root string, matcher *ignore.Matcher) *LocalWorkspace {
	if matcher == nil {
		matcher = ignore.New(nil)
	}
	return &LocalWorkspace{Root: root, matcher: matcher}
}

func (w *LocalWorkspace) abs(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Internal reports whether rel belongs to the repository's own bookkeeping.
func Internal(rel string) bool {
	return utils.Under(rel, RepoDirName) || rel == ignore.FileName
}

// Ignored reports whether rel is excluded from tracking.
func (w *LocalWorkspace) Ignored(rel string, isDir bool) bool {
	return Internal(rel) || w.matcher.Match(rel, isDir)
}

// Files lists every visible regular file, sorted.
func (w *LocalWorkspace) Files() ([]string, error) {
	return w.FilesUnder("")
}

// FilesUnder lists visible regular files at or beneath dir ("" is the root).
func (w *LocalWorkspace) FilesUnder(dir string) ([]string, error) {
	var files []string
	start := w.abs(dir)

	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == start {
				return filepath.SkipAll
			}
			return err
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return fmt.Errorf("getting relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if w.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.Ignored(rel, false) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", w.abs(dir), err)
	}

	sort.Strings(files)
	return files, nil
}

// Kind describes what exists at a working path.
type Kind int

const (
	Missing Kind = iota
	File
	Dir
	Other
)

func (w *LocalWorkspace) Stat(rel string) (Kind, error) {
	info, err := os.Lstat(w.abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return Missing, nil
		}
		return Missing, err
	}
	switch {
	case info.Mode().IsRegular():
		return File, nil
	case info.IsDir():
		return Dir, nil
	default:
		return Other, nil
	}
}

func (w *LocalWorkspace) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(w.abs(rel))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// Hash returns the blob id of the file at rel, or "" when no regular file
// is there.
func (w *LocalWorkspace) Hash(rel string) (string, error) {
	kind, err := w.Stat(rel)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", rel, err)
	}
	if kind != File {
		return "", nil
	}
	data, err := w.Read(rel)
	if err != nil {
		return "", err
	}
	return utils.HashContent(data), nil
}

// Hashes maps every visible file to the blob id of its content.
func (w *LocalWorkspace) Hashes() (map[string]string, error) {
	files, err := w.Files()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		data, err := w.Read(f)
		if err != nil {
			return nil, err
		}
		out[f] = utils.HashContent(data)
	}
	return out, nil
}

// Write replaces the file at rel, creating parent directories. An empty
// directory in the way is removed first.
func (w *LocalWorkspace) Write(rel string, content []byte) error {
	path := w.abs(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", rel, err)
	}
	if info, err := os.Lstat(path); err == nil && info.IsDir() {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("replacing directory %s: %w", rel, err)
		}
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// Remove deletes the file at rel and any parent directories it leaves empty.
// Removing a missing file is not an error.
func (w *LocalWorkspace) Remove(rel string) error {
	if err := os.Remove(w.abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", rel, err)
	}
	w.pruneEmptyParents(rel)
	return nil
}

func (w *LocalWorkspace) pruneEmptyParents(rel string) {
	dir := filepath.Dir(filepath.FromSlash(rel))
	for dir != "." && dir != string(filepath.Separator) && !strings.HasPrefix(dir, "..") {
		entries, err := os.ReadDir(filepath.Join(w.Root, dir))
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(filepath.Join(w.Root, dir)); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
