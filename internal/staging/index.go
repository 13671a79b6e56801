// internal/staging/index.go
package staging

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"twig/shared/utils"
)

// Tombstone marks a path that the next commit removes.
const Tombstone = ""

// Index is the staging area: path to blob id, or to Tombstone. It is loaded
// and saved as a whole.
type Index struct {
	path    string
	entries map[string]string
}

// Load reads the index file at path. A missing file is an empty index.
func Load(path string) (*Index, error) {
	idx := &Index{path: path, entries: map[string]string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if len(data) == 0 {
		return idx, nil
	}

	entries, err := Decode(data)
	if err != nil {
		return nil, err
	}
	idx.entries = entries
	return idx, nil
}

// Save replaces the index file with the current entries.
func (i *Index) Save() error {
	data, err := Encode(i.entries)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(i.path, data, 0644)
}

// Encode writes entries as {path: blobId | null}.
func Encode(entries map[string]string) ([]byte, error) {
	out := make(map[string]*string, len(entries))
	for p, id := range entries {
		if id == Tombstone {
			out[p] = nil
			continue
		}
		out[p] = &id
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding index: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (map[string]string, error) {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	entries := make(map[string]string, len(raw))
	for p, id := range raw {
		if id == nil {
			entries[p] = Tombstone
		} else {
			entries[p] = *id
		}
	}
	return entries, nil
}

func (i *Index) Stage(path, blobID string) {
	i.entries[path] = blobID
}

// Remove stages the deletion of path.
func (i *Index) Remove(path string) {
	i.entries[path] = Tombstone
}

// Unstage drops any entry for path.
func (i *Index) Unstage(path string) {
	delete(i.entries, path)
}

func (i *Index) Clear() {
	i.entries = map[string]string{}
}

// Entry returns the staged blob id for path; removed reports a tombstone.
func (i *Index) Entry(path string) (blobID string, removed, ok bool) {
	id, ok := i.entries[path]
	if !ok {
		return "", false, false
	}
	return id, id == Tombstone, true
}

func (i *Index) Len() int { return len(i.entries) }

func (i *Index) IsEmpty() bool { return len(i.entries) == 0 }

// Snapshot returns a copy of the entries.
func (i *Index) Snapshot() map[string]string {
	out := make(map[string]string, len(i.entries))
	for p, id := range i.entries {
		out[p] = id
	}
	return out
}

// Restore replaces every entry with a copy of entries.
func (i *Index) Restore(entries map[string]string) {
	i.entries = make(map[string]string, len(entries))
	for p, id := range entries {
		i.entries[p] = id
	}
}

// Staged lists paths staged for addition, sorted.
func (i *Index) Staged() []string {
	var out []string
	for p, id := range i.entries {
		if id != Tombstone {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Removed lists paths staged for removal, sorted.
func (i *Index) Removed() []string {
	var out []string
	for p, id := range i.entries {
		if id == Tombstone {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Apply overlays the staged entries on files and returns the new map. files
// is not modified.
func (i *Index) Apply(files map[string]string) map[string]string {
	out := make(map[string]string, len(files)+len(i.entries))
	for p, id := range files {
		out[p] = id
	}
	for p, id := range i.entries {
		if id == Tombstone {
			delete(out, p)
		} else {
			out[p] = id
		}
	}
	return out
}
