// internal/history/history.go
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"twig/shared/utils"

	"github.com/google/uuid"
)

var ErrEmpty = errors.New("no operation to undo")

// Type names the command a record reverses.
type Type string

const (
	TypeAdd            Type = "ADD"
	TypeCommit         Type = "COMMIT"
	TypeRm             Type = "RM"
	TypeBranch         Type = "BRANCH"
	TypeRmBranch       Type = "RM_BRANCH"
	TypeCheckoutBranch Type = "CHECKOUT_BRANCH"
	TypeCheckoutFile   Type = "CHECKOUT_FILE"
	TypeReset          Type = "RESET"
	TypeMerge          Type = "MERGE"
)

// MergeKind records which path a merge took.
type MergeKind string

const (
	MergeNoNeed      MergeKind = "no-need"
	MergeFastForward MergeKind = "fast-forward"
	MergeNormal      MergeKind = "normal"
)

// WorkingDelta describes a working tree relative to a commit: files whose
// bytes differ from it (as blob ids already in the object store) and tracked
// files that were absent.
type WorkingDelta struct {
	Dirty   map[string]string `json:"dirty,omitempty"`
	Missing []string          `json:"missing,omitempty"`
}

func (d *WorkingDelta) Empty() bool {
	return d == nil || (len(d.Dirty) == 0 && len(d.Missing) == 0)
}

// Snapshot holds the prior state an operation needs to be reversed. Only the
// fields relevant to the record's Type are set.
type Snapshot struct {
	Staging        map[string]string `json:"staging,omitempty"`
	HeadCommit     string            `json:"head_commit,omitempty"`
	Branch         string            `json:"branch,omitempty"`
	RefCommit      string            `json:"ref_commit,omitempty"`
	PreviousBranch string            `json:"previous_branch,omitempty"`
	Files          map[string][]byte `json:"files,omitempty"`
	Absent         []string          `json:"absent,omitempty"`
	Working        *WorkingDelta     `json:"working,omitempty"`
	MergeKind      MergeKind         `json:"merge_kind,omitempty"`
}

type Record struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Params    map[string]string `json:"params,omitempty"`
	Snapshot  Snapshot          `json:"snapshot"`
	Timestamp time.Time         `json:"timestamp"`
}

// History is the undo stack, oldest record first, saved as a whole.
type History struct {
	path    string
	records []Record
}

// Load reads the stack at path. A missing file is an empty stack.
func Load(path string) (*History, error) {
	h := &History{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading operation history: %w", err)
	}
	if len(data) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h.records); err != nil {
		return nil, fmt.Errorf("decoding operation history: %w", err)
	}
	return h, nil
}

func (h *History) save() error {
	records := h.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding operation history: %w", err)
	}
	return utils.WriteFileAtomic(h.path, data, 0644)
}

// Push stamps rec with an id and time and appends it.
func (h *History) Push(rec Record) (Record, error) {
	rec.ID = uuid.New().String()
	rec.Timestamp = time.Now().UTC()
	h.records = append(h.records, rec)
	if err := h.save(); err != nil {
		h.records = h.records[:len(h.records)-1]
		return Record{}, err
	}
	return rec, nil
}

// Peek returns the most recent record without removing it.
func (h *History) Peek() (Record, error) {
	if len(h.records) == 0 {
		return Record{}, ErrEmpty
	}
	return h.records[len(h.records)-1], nil
}

// Drop discards the most recent record once it has been undone.
func (h *History) Drop() error {
	if len(h.records) == 0 {
		return ErrEmpty
	}
	last := h.records[len(h.records)-1]
	h.records = h.records[:len(h.records)-1]
	if err := h.save(); err != nil {
		h.records = append(h.records, last)
		return err
	}
	return nil
}

func (h *History) Len() int { return len(h.records) }

// Init writes an empty stack.
func Init(path string) error {
	return (&History{path: path}).save()
}
