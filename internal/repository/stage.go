// internal/repository/stage.go
package repository

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/object"
	"twig/internal/workspace"
	"twig/shared/utils"

	"go.uber.org/zap"
)

// Add stages the file at path, or every visible file beneath it when it
// names a directory. A file whose content matches the current commit is
// unstaged instead.
func (r *Repository) Add(path string) error {
	clean, dir := utils.NormalizePath(path)

	_, head, err := r.head()
	if err != nil {
		return err
	}

	files, err := r.addTargets(clean, dir)
	if err != nil {
		return err
	}
	// stored paths are JSON keys, which cannot carry arbitrary bytes
	var invalid []string
	for _, f := range files {
		if !utf8.ValidString(f) {
			invalid = append(invalid, f)
		}
	}
	if len(invalid) > 0 {
		return errors.UserError("File name is not valid UTF-8.", invalid)
	}

	prior := r.index.Snapshot()
	staged := 0
	for _, f := range files {
		content, err := r.work.Read(f)
		if err != nil {
			return errors.StorageError("reading working file", err)
		}
		id := utils.HashContent(content)
		if tracked, _ := head.Blob(f); tracked == id {
			r.index.Unstage(f)
			continue
		}
		if _, err := r.objects.PutBlob(content); err != nil {
			return errors.StorageError("storing blob", err)
		}
		r.index.Stage(f, id)
		staged++
	}

	if err := r.saveIndex(); err != nil {
		return err
	}
	r.logger.Info("added", zap.String("path", path), zap.Int("files", len(files)), zap.Int("staged", staged))

	return r.record(history.TypeAdd, map[string]string{"path": path}, history.Snapshot{Staging: prior})
}

func (r *Repository) addTargets(clean string, dir bool) ([]string, error) {
	if clean == "" {
		return r.workFiles("")
	}
	if workspace.Internal(clean) {
		return nil, errors.UserError(fmt.Sprintf("Cannot add %s.", clean), nil)
	}

	kind, err := r.work.Stat(clean)
	if err != nil {
		return nil, errors.StorageError("checking path", err)
	}

	switch {
	case kind == workspace.Missing:
		return nil, errors.UserError("File does not exist.", nil)
	case dir && kind != workspace.Dir:
		return nil, errors.UserError("Path is not a directory.", nil)
	case kind == workspace.File:
		if r.work.Ignored(clean, false) {
			return nil, errors.UserError(fmt.Sprintf("The path %s is ignored.", clean), nil)
		}
		return []string{clean}, nil
	case kind == workspace.Dir:
		if r.work.Ignored(clean, true) {
			return nil, errors.UserError(fmt.Sprintf("The path %s is ignored.", clean), nil)
		}
		return r.workFiles(clean)
	default:
		return nil, errors.UserError("File does not exist.", nil)
	}
}

func (r *Repository) workFiles(dir string) ([]string, error) {
	files, err := r.work.FilesUnder(dir)
	if err != nil {
		return nil, errors.StorageError("listing working files", err)
	}
	return files, nil
}

// Rm stages the removal of path, or of every tracked or staged path beneath
// it, and deletes the working copies.
func (r *Repository) Rm(path string) error {
	clean, _ := utils.NormalizePath(path)

	_, head, err := r.head()
	if err != nil {
		return err
	}

	known := r.index.Snapshot()
	for p, id := range head.Files {
		known[p] = id
	}
	var targets []string
	for _, p := range utils.SortedKeys(known) {
		if utils.Under(p, clean) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return errors.UserError("No reason to remove the file.", nil)
	}

	prior := r.index.Snapshot()
	removed := map[string][]byte{}
	for _, p := range targets {
		kind, err := r.work.Stat(p)
		if err != nil {
			return errors.StorageError("checking working file", err)
		}
		if kind == workspace.File {
			content, err := r.work.Read(p)
			if err != nil {
				return errors.StorageError("reading working file", err)
			}
			removed[p] = content
		}
		r.index.Remove(p)
	}

	if err := r.saveIndex(); err != nil {
		return err
	}
	for _, p := range utils.SortedKeys(removed) {
		if err := r.work.Remove(p); err != nil {
			return errors.StorageError("removing working file", err)
		}
	}
	r.logger.Info("removed", zap.String("path", path), zap.Int("files", len(targets)))

	return r.record(history.TypeRm, map[string]string{"path": path}, history.Snapshot{
		Staging: prior,
		Files:   removed,
	})
}

// Commit records the staged changes on top of the current commit and
// advances the active branch to it.
func (r *Repository) Commit(message string) (*object.Commit, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.UserError("Please enter a commit message.", nil)
	}
	if r.index.IsEmpty() {
		return nil, errors.UserError("No changes added to the commit.", nil)
	}

	branch, head, err := r.head()
	if err != nil {
		return nil, err
	}

	c, err := object.NewCommit(head.ID(), "", message, time.Now(), r.index.Apply(head.Files))
	if err != nil {
		return nil, errors.StorageError("building commit", err)
	}
	if _, err := r.objects.Put(c); err != nil {
		return nil, errors.StorageError("storing commit", err)
	}
	if err := r.refs.SetBranch(branch, c.ID()); err != nil {
		return nil, errors.StorageError("updating branch", err)
	}

	prior := r.index.Snapshot()
	r.index.Clear()
	if err := r.saveIndex(); err != nil {
		return nil, err
	}

	r.logger.Info("committed",
		zap.String("id", c.ID()),
		zap.String("branch", branch),
		zap.Int("files", len(c.Files)))

	err = r.record(history.TypeCommit, map[string]string{"message": message}, history.Snapshot{
		Staging:    prior,
		HeadCommit: head.ID(),
		Branch:     branch,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
