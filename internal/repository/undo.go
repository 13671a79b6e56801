// internal/repository/undo.go
package repository

import (
	stderrors "errors"
	"fmt"

	"twig/internal/errors"
	"twig/internal/history"
	"twig/shared/utils"

	"go.uber.org/zap"
)

// Undo reverses the most recent recorded operation and drops its record.
func (r *Repository) Undo() (history.Record, error) {
	rec, err := r.history.Peek()
	if stderrors.Is(err, history.ErrEmpty) {
		return history.Record{}, errors.UserError("No operation to undo.", nil)
	}
	if err != nil {
		return history.Record{}, errors.StorageError("reading operation history", err)
	}

	if err := r.reverse(rec); err != nil {
		return history.Record{}, err
	}
	if err := r.history.Drop(); err != nil {
		return history.Record{}, errors.StorageError("writing operation history", err)
	}

	r.logger.Info("undid operation", zap.String("id", rec.ID), zap.String("type", string(rec.Type)))
	return rec, nil
}

func (r *Repository) reverse(rec history.Record) error {
	snap := rec.Snapshot

	switch rec.Type {
	case history.TypeAdd:
		return r.restoreIndex(snap.Staging)

	case history.TypeCommit:
		if err := r.refs.SetBranch(snap.Branch, snap.HeadCommit); err != nil {
			return errors.StorageError("restoring branch", err)
		}
		return r.restoreIndex(snap.Staging)

	case history.TypeRm:
		if err := r.restoreIndex(snap.Staging); err != nil {
			return err
		}
		return r.restoreFiles(snap.Files, nil)

	case history.TypeBranch:
		if err := r.refs.DeleteBranch(snap.Branch); err != nil {
			return errors.StorageError("deleting branch", err)
		}
		return nil

	case history.TypeRmBranch:
		if err := r.refs.SetBranch(snap.Branch, snap.RefCommit); err != nil {
			return errors.StorageError("restoring branch", err)
		}
		return nil

	case history.TypeCheckoutBranch:
		if err := r.restoreTree(snap); err != nil {
			return err
		}
		if err := r.refs.SetHead(snap.PreviousBranch); err != nil {
			return errors.StorageError("restoring HEAD", err)
		}
		return nil

	case history.TypeCheckoutFile:
		return r.restoreFiles(snap.Files, snap.Absent)

	case history.TypeReset:
		if err := r.restoreTree(snap); err != nil {
			return err
		}
		if err := r.refs.SetBranch(snap.Branch, snap.RefCommit); err != nil {
			return errors.StorageError("restoring branch", err)
		}
		return nil

	case history.TypeMerge:
		if snap.MergeKind == history.MergeNoNeed {
			return nil
		}
		if err := r.restoreTree(snap); err != nil {
			return err
		}
		if err := r.refs.SetBranch(snap.Branch, snap.HeadCommit); err != nil {
			return errors.StorageError("restoring branch", err)
		}
		return nil

	default:
		return errors.StorageError("reversing operation", fmt.Errorf("unknown operation type %q", rec.Type))
	}
}

// restoreTree rebuilds the working directory and staging area as they were
// before a whole-tree operation.
func (r *Repository) restoreTree(snap history.Snapshot) error {
	prior, err := r.commit(snap.HeadCommit)
	if err != nil {
		return err
	}
	if err := r.restoreWorking(prior, snap.Working); err != nil {
		return err
	}
	return r.restoreIndex(snap.Staging)
}

func (r *Repository) restoreIndex(entries map[string]string) error {
	r.index.Restore(entries)
	return r.saveIndex()
}

func (r *Repository) restoreFiles(files map[string][]byte, absent []string) error {
	for _, p := range utils.SortedKeys(files) {
		if err := r.work.Write(p, files[p]); err != nil {
			return errors.StorageError("restoring working file", err)
		}
	}
	for _, p := range absent {
		if err := r.work.Remove(p); err != nil {
			return errors.StorageError("removing working file", err)
		}
	}
	return nil
}
