// internal/merge/ancestor.go
package merge

import (
	"fmt"

	"twig/internal/object"
)

// CommitReader loads commits by id.
type CommitReader interface {
	Commit(id string) (*object.Commit, error)
}

// Ancestors returns every commit reachable from id over both parent edges,
// id included, in breadth first order.
func Ancestors(r CommitReader, id string) ([]string, error) {
	var order []string
	seen := map[string]bool{id: true}
	queue := []string{id}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)

		c, err := r.Commit(cur)
		if err != nil {
			return nil, fmt.Errorf("walking history at %s: %w", cur, err)
		}
		for _, p := range c.Parents() {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return order, nil
}

// IsAncestor reports whether ancestor is reachable from id (or equal to it).
func IsAncestor(r CommitReader, ancestor, id string) (bool, error) {
	all, err := Ancestors(r, id)
	if err != nil {
		return false, err
	}
	for _, a := range all {
		if a == ancestor {
			return true, nil
		}
	}
	return false, nil
}

// SplitPoint finds the merge base of current and given: a common ancestor
// that is not itself an ancestor of another common ancestor. When histories
// cross and several qualify, the most recent one wins, then the one met
// first walking back from given.
func SplitPoint(r CommitReader, current, given string) (string, error) {
	fromCurrent, err := Ancestors(r, current)
	if err != nil {
		return "", err
	}
	inCurrent := make(map[string]bool, len(fromCurrent))
	for _, id := range fromCurrent {
		inCurrent[id] = true
	}

	fromGiven, err := Ancestors(r, given)
	if err != nil {
		return "", err
	}
	var common []string
	for _, id := range fromGiven {
		if inCurrent[id] {
			common = append(common, id)
		}
	}
	if len(common) == 0 {
		return "", fmt.Errorf("commits %s and %s share no history", current, given)
	}
	if len(common) == 1 {
		return common[0], nil
	}

	// Everything reachable from a parent of a common ancestor sits strictly
	// below some common ancestor and cannot be the merge base.
	below := map[string]bool{}
	var queue []string
	for _, id := range common {
		c, err := r.Commit(id)
		if err != nil {
			return "", err
		}
		queue = append(queue, c.Parents()...)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if below[cur] {
			continue
		}
		below[cur] = true
		c, err := r.Commit(cur)
		if err != nil {
			return "", err
		}
		queue = append(queue, c.Parents()...)
	}

	var best *object.Commit
	for _, id := range common {
		if below[id] {
			continue
		}
		c, err := r.Commit(id)
		if err != nil {
			return "", err
		}
		if best == nil || c.Timestamp.After(best.Timestamp) {
			best = c
		}
	}
	return best.ID(), nil
}
