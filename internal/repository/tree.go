// internal/repository/tree.go
package repository

import (
	"fmt"
	"sort"

	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/object"
	"twig/internal/workspace"
	"twig/shared/utils"
)

const msgUnsafeFiles = "There is an untracked file in the way; delete it, or add and commit it first."

// UnsafeFile is a working file a whole-tree operation would lose.
type UnsafeFile struct {
	Path  string `json:"path"`
	State string `json:"state"` // untracked, staged or modified
}

func (u UnsafeFile) String() string {
	return fmt.Sprintf("%s (%s)", u.Path, u.State)
}

// checkSafe fails unless every visible working file can be rewritten to
// target without losing content: its bytes must equal the current commit's
// version or the target's version of the same path.
func (r *Repository) checkSafe(head *object.Commit, target map[string]string) error {
	hashes, err := r.work.Hashes()
	if err != nil {
		return errors.StorageError("hashing working files", err)
	}

	var unsafe []UnsafeFile
	for _, p := range utils.SortedKeys(hashes) {
		h := hashes[p]
		tracked, inHead := head.Blob(p)
		if (inHead && h == tracked) || target[p] == h {
			continue
		}

		state := "untracked"
		if staged, removed, ok := r.index.Entry(p); ok && !removed && staged != "" {
			state = "staged"
		} else if inHead {
			state = "modified"
		}
		unsafe = append(unsafe, UnsafeFile{Path: p, State: state})
	}

	if len(unsafe) > 0 {
		return errors.UserError(msgUnsafeFiles, unsafe)
	}
	return nil
}

// captureWorking describes the working tree relative to head so it can be
// rebuilt later. Content that differs from head is stored as blobs.
func (r *Repository) captureWorking(head *object.Commit) (*history.WorkingDelta, error) {
	delta := &history.WorkingDelta{Dirty: map[string]string{}}

	for _, p := range utils.SortedKeys(head.Files) {
		kind, err := r.work.Stat(p)
		if err != nil {
			return nil, errors.StorageError("checking working file", err)
		}
		if kind != workspace.File {
			delta.Missing = append(delta.Missing, p)
			continue
		}
		id, err := r.storeWorking(p)
		if err != nil {
			return nil, err
		}
		if id != head.Files[p] {
			delta.Dirty[p] = id
		}
	}

	files, err := r.workFiles("")
	if err != nil {
		return nil, err
	}
	for _, p := range files {
		if _, tracked := head.Blob(p); tracked {
			continue
		}
		id, err := r.storeWorking(p)
		if err != nil {
			return nil, err
		}
		delta.Dirty[p] = id
	}
	return delta, nil
}

func (r *Repository) storeWorking(p string) (string, error) {
	content, err := r.work.Read(p)
	if err != nil {
		return "", errors.StorageError("reading working file", err)
	}
	id, err := r.objects.PutBlob(content)
	if err != nil {
		return "", errors.StorageError("storing blob", err)
	}
	return id, nil
}

// checkoutTree makes the working directory match files: visible files not in
// it are deleted and every tracked path is written. Staging is cleared.
func (r *Repository) checkoutTree(files map[string]string) error {
	current, err := r.workFiles("")
	if err != nil {
		return err
	}
	for _, p := range current {
		if _, keep := files[p]; keep {
			continue
		}
		if err := r.work.Remove(p); err != nil {
			return errors.StorageError("removing working file", err)
		}
	}

	for _, p := range utils.SortedKeys(files) {
		if err := r.writeBlob(p, files[p]); err != nil {
			return err
		}
	}

	r.index.Clear()
	return r.saveIndex()
}

// writeBlob writes blob id to the working path p unless it already holds
// that content.
func (r *Repository) writeBlob(p, id string) error {
	h, err := r.work.Hash(p)
	if err != nil {
		return errors.StorageError("hashing working file", err)
	}
	if h == id {
		return nil
	}
	content, err := r.blob(id)
	if err != nil {
		return err
	}
	if err := r.work.Write(p, content); err != nil {
		return errors.StorageError("writing working file", err)
	}
	return nil
}

// switchTree checks that the working directory can move from head to
// target, records its current state in snap and rewrites it.
func (r *Repository) switchTree(head, target *object.Commit, snap *history.Snapshot) error {
	if err := r.checkSafe(head, target.Files); err != nil {
		return err
	}
	delta, err := r.captureWorking(head)
	if err != nil {
		return err
	}
	snap.Working = delta
	return r.checkoutTree(target.Files)
}

// restoreWorking rebuilds the working tree captured by captureWorking.
func (r *Repository) restoreWorking(base *object.Commit, delta *history.WorkingDelta) error {
	files := make(map[string]string, len(base.Files))
	for p, id := range base.Files {
		files[p] = id
	}
	if delta != nil {
		for p, id := range delta.Dirty {
			files[p] = id
		}
		for _, p := range delta.Missing {
			delete(files, p)
		}
	}
	return r.checkoutTree(files)
}

// restoreSubset writes the paths of c selected by path into the working
// directory and returns what they held before.
func (r *Repository) restoreSubset(c *object.Commit, path string) (history.Snapshot, error) {
	clean, dir := utils.NormalizePath(path)

	var paths []string
	if _, ok := c.Blob(clean); ok && !dir {
		paths = []string{clean}
	} else {
		for _, p := range utils.SortedKeys(c.Files) {
			if utils.Under(p, clean) {
				paths = append(paths, p)
			}
		}
	}
	if len(paths) == 0 {
		return history.Snapshot{}, errors.UserError("File does not exist in that commit.", nil)
	}

	snap := history.Snapshot{Files: map[string][]byte{}}
	for _, p := range paths {
		h, err := r.work.Hash(p)
		if err != nil {
			return history.Snapshot{}, errors.StorageError("hashing working file", err)
		}
		if h == "" {
			snap.Absent = append(snap.Absent, p)
			continue
		}
		content, err := r.work.Read(p)
		if err != nil {
			return history.Snapshot{}, errors.StorageError("reading working file", err)
		}
		snap.Files[p] = content
	}
	sort.Strings(snap.Absent)

	for _, p := range paths {
		if err := r.writeBlob(p, c.Files[p]); err != nil {
			return history.Snapshot{}, err
		}
	}
	return snap, nil
}
