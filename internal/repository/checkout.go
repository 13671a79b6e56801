// internal/repository/checkout.go
package repository

import (
	stderrors "errors"
	"fmt"
	"strings"

	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/merge"
	"twig/internal/object"
	"twig/internal/refs"
	"twig/shared/utils"

	"go.uber.org/zap"
)

// CheckoutBranch switches HEAD to branch and rewrites the working directory
// to its commit.
func (r *Repository) CheckoutBranch(branch string) error {
	if !r.refs.HasBranch(branch) {
		return errors.NotFound("No such branch exists.")
	}
	current, head, err := r.head()
	if err != nil {
		return err
	}
	if branch == current {
		return errors.UserError("No need to checkout the current branch.", nil)
	}

	targetID, err := r.refs.Branch(branch)
	if err != nil {
		return errors.StorageError("reading branch", err)
	}
	target, err := r.commit(targetID)
	if err != nil {
		return err
	}

	snap := history.Snapshot{
		Staging:        r.index.Snapshot(),
		HeadCommit:     head.ID(),
		PreviousBranch: current,
	}
	if err := r.switchTree(head, target, &snap); err != nil {
		return err
	}
	if err := r.refs.SetHead(branch); err != nil {
		return errors.StorageError("updating HEAD", err)
	}
	r.logger.Info("checked out branch", zap.String("from", current), zap.String("to", branch))

	return r.record(history.TypeCheckoutBranch, map[string]string{"branch": branch}, snap)
}

// CheckoutFile restores path (a file, or everything beneath a directory) from
// the commit named by prefix. HEAD, branches and staging are untouched.
func (r *Repository) CheckoutFile(prefix, path string) error {
	id, err := r.findReachable(prefix)
	if err != nil {
		return err
	}
	c, err := r.commit(id)
	if err != nil {
		return err
	}
	return r.checkoutPaths(c, path)
}

// CheckoutPath restores path from the current commit.
func (r *Repository) CheckoutPath(path string) error {
	_, head, err := r.head()
	if err != nil {
		return err
	}
	return r.checkoutPaths(head, path)
}

func (r *Repository) checkoutPaths(c *object.Commit, path string) error {
	snap, err := r.restoreSubset(c, path)
	if err != nil {
		return err
	}
	r.logger.Info("checked out paths",
		zap.String("commit", c.ID()),
		zap.String("path", path),
		zap.Int("files", len(snap.Files)+len(snap.Absent)))

	return r.record(history.TypeCheckoutFile, map[string]string{"commit": c.ID(), "path": path}, snap)
}

// findReachable resolves prefix against every commit reachable from a
// branch.
func (r *Repository) findReachable(prefix string) (string, error) {
	if prefix == "" {
		return "", errors.NotFound("No commit with that id exists.")
	}
	branches, err := r.refs.Branches()
	if err != nil {
		return "", errors.StorageError("listing branches", err)
	}

	matches := map[string]bool{}
	seen := map[string]bool{}
	for _, name := range utils.SortedKeys(branches) {
		if seen[branches[name]] {
			continue
		}
		ids, err := merge.Ancestors(r.objects, branches[name])
		if err != nil {
			return "", errors.StorageError("walking history", err)
		}
		for _, id := range ids {
			seen[id] = true
			if strings.HasPrefix(id, prefix) {
				matches[id] = true
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", errors.NotFound("No commit with that id exists.")
	case 1:
		for id := range matches {
			return id, nil
		}
	}
	return "", errors.UserError("Commit id prefix is ambiguous.", utils.SortedKeys(matches))
}

// Branch creates a branch at the current commit.
func (r *Repository) Branch(name string) error {
	if err := refs.ValidateName(name); err != nil {
		return errors.UserError(fmt.Sprintf("Invalid branch name %q.", name), nil)
	}
	_, head, err := r.head()
	if err != nil {
		return err
	}

	if err := r.refs.CreateBranch(name, head.ID()); err != nil {
		if stderrors.Is(err, refs.ErrBranchExists) {
			return errors.UserError("A branch with that name already exists.", nil)
		}
		return errors.StorageError("creating branch", err)
	}
	r.logger.Info("created branch", zap.String("name", name), zap.String("commit", head.ID()))

	return r.record(history.TypeBranch, map[string]string{"name": name}, history.Snapshot{Branch: name})
}

// RmBranch deletes a branch pointer. Its commits stay in the store.
func (r *Repository) RmBranch(name string) error {
	if !r.refs.HasBranch(name) {
		return errors.NotFound("A branch with that name does not exist.")
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if name == current {
		return errors.UserError("Cannot remove the current branch.", nil)
	}

	id, err := r.refs.Branch(name)
	if err != nil {
		return errors.StorageError("reading branch", err)
	}
	if err := r.refs.DeleteBranch(name); err != nil {
		return errors.StorageError("deleting branch", err)
	}
	r.logger.Info("removed branch", zap.String("name", name), zap.String("commit", id))

	return r.record(history.TypeRmBranch, map[string]string{"name": name}, history.Snapshot{
		Branch:    name,
		RefCommit: id,
	})
}

// Reset moves the active branch to the commit named by prefix and rewrites
// the working directory to match it.
func (r *Repository) Reset(prefix string) (*object.Commit, error) {
	id, err := r.resolveCommit(prefix)
	if err != nil {
		return nil, err
	}
	target, err := r.commit(id)
	if err != nil {
		return nil, err
	}
	branch, head, err := r.head()
	if err != nil {
		return nil, err
	}

	snap := history.Snapshot{
		Staging:    r.index.Snapshot(),
		HeadCommit: head.ID(),
		RefCommit:  head.ID(),
		Branch:     branch,
	}
	if err := r.switchTree(head, target, &snap); err != nil {
		return nil, err
	}
	if err := r.refs.SetBranch(branch, id); err != nil {
		return nil, errors.StorageError("updating branch", err)
	}
	r.logger.Info("reset", zap.String("branch", branch), zap.String("from", head.ID()), zap.String("to", id))

	if err := r.record(history.TypeReset, map[string]string{"commit": id}, snap); err != nil {
		return nil, err
	}
	return target, nil
}
