// internal/object/object.go
package object

import (
	"encoding/json"
	"fmt"
	"time"

	"twig/shared/utils"
)

// Kind tags a stored object so readers never have to guess its shape.
type Kind byte

const (
	KindBlob   Kind = 1
	KindCommit Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindCommit:
		return "commit"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

const (
	InitialMessage = "initial commit"
	commitSalt     = "commit\x00"
)

// Epoch is the timestamp carried by every repository's root commit.
var Epoch = time.Unix(0, 0).UTC()

// Object is anything the store can hold.
type Object interface {
	ID() string
	Kind() Kind
}

// Blob is an immutable snapshot of one file's bytes.
type Blob struct {
	Content []byte
	id      string
}

func NewBlob(content []byte) *Blob {
	if content == nil {
		content = []byte{}
	}
	return &Blob{Content: content, id: utils.HashContent(content)}
}

func (b *Blob) ID() string {
	if b.id == "" {
		b.id = utils.HashContent(b.Content)
	}
	return b.id
}

func (b *Blob) Kind() Kind { return KindBlob }

// Commit is an immutable snapshot of the tracked tree. Files maps a slash
// separated path to the id of the blob holding its content.
type Commit struct {
	Parent1   string            `json:"parent1,omitempty"`
	Parent2   string            `json:"parent2,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Files     map[string]string `json:"files"`

	id string
}

// NewCommit builds a commit and derives its id. The file map is copied.
func NewCommit(parent1, parent2, message string, ts time.Time, files map[string]string) (*Commit, error) {
	c := &Commit{
		Parent1:   parent1,
		Parent2:   parent2,
		Timestamp: ts.UTC(),
		Message:   message,
		Files:     make(map[string]string, len(files)),
	}
	for p, id := range files {
		c.Files[p] = id
	}

	payload, err := c.payload()
	if err != nil {
		return nil, err
	}
	c.id = commitID(payload)
	return c, nil
}

// NewRootCommit returns the parentless commit every repository starts from.
// Its id is the same in every repository.
func NewRootCommit() *Commit {
	c, err := NewCommit("", "", InitialMessage, Epoch, nil)
	if err != nil {
		panic(fmt.Sprintf("building root commit: %v", err))
	}
	return c
}

func (c *Commit) ID() string { return c.id }

func (c *Commit) Kind() Kind { return KindCommit }

// IsRoot reports whether c is a repository's root commit.
func (c *Commit) IsRoot() bool { return c.Parent1 == "" }

func (c *Commit) IsMerge() bool { return c.Parent2 != "" }

// Parents lists parent ids, first parent first.
func (c *Commit) Parents() []string {
	var parents []string
	if c.Parent1 != "" {
		parents = append(parents, c.Parent1)
	}
	if c.Parent2 != "" {
		parents = append(parents, c.Parent2)
	}
	return parents
}

// Blob returns the blob id tracked at path, if any.
func (c *Commit) Blob(path string) (string, bool) {
	id, ok := c.Files[path]
	return id, ok
}

// payload is the canonical encoding the id is derived from. encoding/json
// writes map keys in sorted order, so equal commits encode identically.
func (c *Commit) payload() ([]byte, error) {
	if c.Files == nil {
		c.Files = map[string]string{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding commit: %w", err)
	}
	return data, nil
}

func commitID(payload []byte) string {
	buf := make([]byte, 0, len(commitSalt)+len(payload))
	buf = append(buf, commitSalt...)
	buf = append(buf, payload...)
	return utils.HashContent(buf)
}
