// internal/repository/merge.go
package repository

import (
	"fmt"
	"time"

	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/merge"
	"twig/internal/object"

	"go.uber.org/zap"
)

// MergeResult reports what Merge did. Conflicts lists the paths written with
// conflict markers; a conflicted merge still produces Commit.
type MergeResult struct {
	Kind      history.MergeKind
	Base      string
	Commit    *object.Commit
	Conflicts []string
}

// Merge merges branch into the active branch.
func (r *Repository) Merge(branch string) (*MergeResult, error) {
	if !r.index.IsEmpty() {
		return nil, errors.UserError("You have uncommitted changes.", nil)
	}
	if !r.refs.HasBranch(branch) {
		return nil, errors.NotFound("A branch with that name does not exist.")
	}
	current, head, err := r.head()
	if err != nil {
		return nil, err
	}
	if branch == current {
		return nil, errors.UserError("Cannot merge a branch with itself.", nil)
	}

	givenID, err := r.refs.Branch(branch)
	if err != nil {
		return nil, errors.StorageError("reading branch", err)
	}
	given, err := r.commit(givenID)
	if err != nil {
		return nil, err
	}

	base, err := r.mergeBase(head.ID(), givenID)
	if err != nil {
		return nil, errors.StorageError("finding split point", err)
	}

	params := map[string]string{"branch": branch}
	snap := history.Snapshot{
		Staging:    r.index.Snapshot(),
		HeadCommit: head.ID(),
		Branch:     current,
	}

	switch base {
	case givenID:
		snap.MergeKind = history.MergeNoNeed
		if err := r.record(history.TypeMerge, params, snap); err != nil {
			return nil, err
		}
		r.logger.Info("merge not needed", zap.String("branch", branch))
		return &MergeResult{Kind: history.MergeNoNeed, Base: base, Commit: head}, nil

	case head.ID():
		if err := r.switchTree(head, given, &snap); err != nil {
			return nil, err
		}
		if err := r.refs.SetBranch(current, givenID); err != nil {
			return nil, errors.StorageError("updating branch", err)
		}
		snap.MergeKind = history.MergeFastForward
		if err := r.record(history.TypeMerge, params, snap); err != nil {
			return nil, err
		}
		r.logger.Info("fast-forwarded", zap.String("branch", current), zap.String("to", givenID))
		return &MergeResult{Kind: history.MergeFastForward, Base: base, Commit: given}, nil
	}

	baseCommit, err := r.commit(base)
	if err != nil {
		return nil, err
	}

	plan := merge.Merge(baseCommit.Files, head.Files, given.Files)
	conflicted := make(map[string]*object.Blob, len(plan.Conflicts))
	for _, p := range plan.Conflicts {
		ours, err := r.blob(head.Files[p])
		if err != nil {
			return nil, err
		}
		theirs, err := r.blob(given.Files[p])
		if err != nil {
			return nil, err
		}
		b := object.NewBlob(merge.ConflictContent(ours, theirs))
		conflicted[p] = b
		plan.Files[p] = b.ID()
	}

	if merge.SameFiles(plan.Files, head.Files) && merge.SameFiles(plan.Files, given.Files) {
		return nil, errors.UserError("No changes to merge.", nil)
	}

	if err := r.checkSafe(head, plan.Files); err != nil {
		return nil, err
	}
	for _, b := range conflicted {
		if _, err := r.objects.Put(b); err != nil {
			return nil, errors.StorageError("storing conflict blob", err)
		}
	}

	msg := fmt.Sprintf("Merged %s into %s.", branch, current)
	c, err := object.NewCommit(head.ID(), givenID, msg, time.Now(), plan.Files)
	if err != nil {
		return nil, errors.StorageError("building merge commit", err)
	}
	if _, err := r.objects.Put(c); err != nil {
		return nil, errors.StorageError("storing merge commit", err)
	}

	if snap.Working, err = r.captureWorking(head); err != nil {
		return nil, err
	}
	if err := r.checkoutTree(c.Files); err != nil {
		return nil, err
	}
	if err := r.refs.SetBranch(current, c.ID()); err != nil {
		return nil, errors.StorageError("updating branch", err)
	}

	snap.MergeKind = history.MergeNormal
	if err := r.record(history.TypeMerge, params, snap); err != nil {
		return nil, err
	}
	r.logger.Info("merged",
		zap.String("branch", branch),
		zap.String("into", current),
		zap.String("commit", c.ID()),
		zap.Strings("conflicts", plan.Conflicts))

	return &MergeResult{Kind: history.MergeNormal, Base: base, Commit: c, Conflicts: plan.Conflicts}, nil
}

// mergeBase returns the split point of current and given, answering directly
// when one already contains the other.
func (r *Repository) mergeBase(current, given string) (string, error) {
	if ok, err := merge.IsAncestor(r.objects, given, current); err != nil || ok {
		return given, err
	}
	if ok, err := merge.IsAncestor(r.objects, current, given); err != nil || ok {
		return current, err
	}
	return merge.SplitPoint(r.objects, current, given)
}
