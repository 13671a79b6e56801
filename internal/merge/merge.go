// internal/merge/merge.go
package merge

import (
	"bytes"
	"sort"
)

const (
	markerOurs   = "<<<<<<< HEAD\n"
	markerSplit  = "=======\n"
	markerTheirs = ">>>>>>>\n"
)

// Outcome is how one path resolves in a three-way merge.
type Outcome int

const (
	KeepOurs Outcome = iota
	TakeTheirs
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case KeepOurs:
		return "keep-ours"
	case TakeTheirs:
		return "take-theirs"
	default:
		return "conflict"
	}
}

// Resolve applies the three-way rule to one path. Arguments are blob ids,
// with "" for a side where the path does not exist. Rules are tried in order.
func Resolve(base, ours, theirs string) Outcome {
	switch {
	case ours == theirs:
		return KeepOurs
	case base == theirs:
		return KeepOurs
	case base == ours:
		return TakeTheirs
	default:
		return Conflict
	}
}

// ConflictContent joins both sides between conflict markers. A missing side
// contributes nothing.
func ConflictContent(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(markerOurs) + len(ours) + len(markerSplit) + len(theirs) + len(markerTheirs))
	buf.WriteString(markerOurs)
	buf.Write(ours)
	buf.WriteString(markerSplit)
	buf.Write(theirs)
	buf.WriteString(markerTheirs)
	return buf.Bytes()
}

// Plan is the per-path result of merging three file maps. Files holds every
// path that survives with the blob id it resolved to; conflicted paths are
// listed in Conflicts and left for the caller to fill in.
type Plan struct {
	Files     map[string]string
	Conflicts []string
}

// Merge runs Resolve over the union of paths in base, ours and theirs.
func Merge(base, ours, theirs map[string]string) Plan {
	paths := map[string]struct{}{}
	for _, m := range []map[string]string{base, ours, theirs} {
		for p := range m {
			paths[p] = struct{}{}
		}
	}

	plan := Plan{Files: map[string]string{}}
	for p := range paths {
		b, o, t := base[p], ours[p], theirs[p]
		switch Resolve(b, o, t) {
		case KeepOurs:
			if o != "" {
				plan.Files[p] = o
			}
		case TakeTheirs:
			if t != "" {
				plan.Files[p] = t
			}
		case Conflict:
			plan.Conflicts = append(plan.Conflicts, p)
		}
	}
	sort.Strings(plan.Conflicts)
	return plan
}

// SameFiles reports whether two file maps track the same content.
func SameFiles(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for p, id := range a {
		if other, ok := b[p]; !ok || other != id {
			return false
		}
	}
	return true
}
