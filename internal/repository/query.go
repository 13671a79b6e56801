// internal/repository/query.go
package repository

import (
	"sort"
	"strings"

	"twig/internal/diff"
	"twig/internal/errors"
	"twig/internal/object"
	"twig/shared/utils"
)

// Log returns the first-parent history of HEAD, newest first, without the
// root commit.
func (r *Repository) Log() ([]*object.Commit, error) {
	_, c, err := r.head()
	if err != nil {
		return nil, err
	}

	var out []*object.Commit
	for !c.IsRoot() {
		out = append(out, c)
		if c, err = r.commit(c.Parent1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GlobalLog returns every stored commit, newest first.
func (r *Repository) GlobalLog() ([]*object.Commit, error) {
	metas, err := r.objects.Metas(object.KindCommit)
	if err != nil {
		return nil, errors.StorageError("reading object catalog", err)
	}

	out := make([]*object.Commit, 0, len(metas))
	for _, m := range metas {
		c, err := r.commit(m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Find returns the ids of commits whose message contains message.
func (r *Repository) Find(message string) ([]string, error) {
	all, err := r.GlobalLog()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range all {
		if strings.Contains(c.Message, message) {
			ids = append(ids, c.ID())
		}
	}
	if len(ids) == 0 {
		return nil, errors.UserError("Found no commit with that message.", nil)
	}
	return ids, nil
}

// Change is a working file that differs from what the next commit would
// record.
type Change struct {
	Path  string
	State string // modified or deleted
}

// Status summarizes branches, staging and the working directory.
type Status struct {
	Branch    string
	Branches  []string
	Staged    []string
	Removed   []string
	Modified  []Change
	Untracked []string
}

// Status compares the working directory against the current commit and the
// staging area.
func (r *Repository) Status() (*Status, error) {
	branch, head, err := r.head()
	if err != nil {
		return nil, err
	}
	branches, err := r.refs.BranchNames()
	if err != nil {
		return nil, errors.StorageError("listing branches", err)
	}
	hashes, err := r.work.Hashes()
	if err != nil {
		return nil, errors.StorageError("hashing working files", err)
	}

	st := &Status{
		Branch:   branch,
		Branches: branches,
		Staged:   r.index.Staged(),
		Removed:  r.index.Removed(),
	}

	paths := map[string]bool{}
	for p := range head.Files {
		paths[p] = true
	}
	for _, p := range st.Staged {
		paths[p] = true
	}
	for _, p := range utils.SortedKeys(paths) {
		staged, removed, isStaged := r.index.Entry(p)
		if removed {
			continue
		}
		want, _ := head.Blob(p)
		if isStaged {
			want = staged
		}

		h, onDisk := hashes[p]
		switch {
		case !onDisk:
			st.Modified = append(st.Modified, Change{Path: p, State: "deleted"})
		case h != want:
			st.Modified = append(st.Modified, Change{Path: p, State: "modified"})
		}
	}

	for _, p := range utils.SortedKeys(hashes) {
		_, tracked := head.Blob(p)
		_, removed, isStaged := r.index.Entry(p)
		if (tracked || isStaged) && !removed {
			continue
		}
		st.Untracked = append(st.Untracked, p)
	}
	return st, nil
}

// Diff returns line diffs between the current commit and the working
// directory for tracked files under the given paths (all when none).
func (r *Repository) Diff(paths ...string) ([]*diff.DiffResult, error) {
	_, head, err := r.head()
	if err != nil {
		return nil, err
	}

	var scopes []string
	for _, p := range paths {
		clean, _ := utils.NormalizePath(p)
		scopes = append(scopes, clean)
	}
	inScope := func(p string) bool {
		if len(scopes) == 0 {
			return true
		}
		for _, s := range scopes {
			if utils.Under(p, s) {
				return true
			}
		}
		return false
	}

	engine := diff.NewEngine(3)
	var out []*diff.DiffResult
	for _, p := range utils.SortedKeys(head.Files) {
		if !inScope(p) {
			continue
		}
		h, err := r.work.Hash(p)
		if err != nil {
			return nil, errors.StorageError("hashing working file", err)
		}
		if h == head.Files[p] {
			continue
		}

		old, err := r.blob(head.Files[p])
		if err != nil {
			return nil, err
		}
		var cur []byte
		if h != "" {
			if cur, err = r.work.Read(p); err != nil {
				return nil, errors.StorageError("reading working file", err)
			}
		}

		res, err := engine.Diff(p, old, cur)
		if err != nil {
			return nil, errors.StorageError("diffing "+p, err)
		}
		out = append(out, res)
	}
	return out, nil
}
