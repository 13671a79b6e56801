// internal/refs/refs.go
package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"twig/shared/utils"
)

const headPrefix = "ref: refs/heads/"

var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrBranchExists   = errors.New("branch already exists")
	ErrInvalidName    = errors.New("invalid branch name")
	ErrCorruptHead    = errors.New("corrupt HEAD")
)

// Store keeps branches as files under refs/heads holding a commit id, and
// HEAD as a symbolic pointer to one of them.
type Store struct {
	heads string
	head  string
}

// New returns the ref store rooted at the repository directory (.twig).
func New(repoDir string) *Store {
	return &Store{
		heads: filepath.Join(repoDir, "refs", "heads"),
		head:  filepath.Join(repoDir, "HEAD"),
	}
}

// ValidateName rejects names that cannot live as a single file under
// refs/heads.
func ValidateName(name string) error {
	if name == "" || name == "." || strings.Contains(name, "..") ||
		strings.ContainsAny(name, "/\\\x00") || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Init creates the refs directory with branch pointing at commitID and HEAD
// on that branch.
func (s *Store) Init(branch, commitID string) error {
	if err := os.MkdirAll(s.heads, 0755); err != nil {
		return fmt.Errorf("creating refs directory: %w", err)
	}
	if err := s.SetBranch(branch, commitID); err != nil {
		return err
	}
	return s.SetHead(branch)
}

// Head returns the name of the active branch.
func (s *Store) Head() (string, error) {
	data, err := os.ReadFile(s.head)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, headPrefix) {
		return "", fmt.Errorf("%w: %q", ErrCorruptHead, line)
	}
	return strings.TrimPrefix(line, headPrefix), nil
}

func (s *Store) SetHead(branch string) error {
	if err := ValidateName(branch); err != nil {
		return err
	}
	return utils.WriteFileAtomic(s.head, []byte(headPrefix+branch+"\n"), 0644)
}

// HeadCommit resolves HEAD to the active branch and its commit id.
func (s *Store) HeadCommit() (branch, id string, err error) {
	branch, err = s.Head()
	if err != nil {
		return "", "", err
	}
	id, err = s.Branch(branch)
	if err != nil {
		return "", "", err
	}
	return branch, id, nil
}

func (s *Store) Branch(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.heads, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrBranchNotFound, name)
		}
		return "", fmt.Errorf("reading branch %s: %w", name, err)
	}
	id := strings.TrimSpace(string(data))
	if !utils.IsHash(id) {
		return "", fmt.Errorf("branch %s holds invalid id %q", name, id)
	}
	return id, nil
}

func (s *Store) HasBranch(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.heads, name))
	return err == nil
}

// CreateBranch adds a branch and fails if one with that name exists.
func (s *Store) CreateBranch(name, id string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if s.HasBranch(name) {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	return s.SetBranch(name, id)
}

// SetBranch points name at id, creating the branch if needed.
func (s *Store) SetBranch(name, id string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !utils.IsHash(id) {
		return fmt.Errorf("refusing to point %s at invalid id %q", name, id)
	}
	return utils.WriteFileAtomic(filepath.Join(s.heads, name), []byte(id), 0644)
}

func (s *Store) DeleteBranch(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.heads, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	return err
}

// Branches returns every branch name with its commit id.
func (s *Store) Branches() (map[string]string, error) {
	entries, err := os.ReadDir(s.heads)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	branches := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		id, err := s.Branch(e.Name())
		if err != nil {
			return nil, err
		}
		branches[e.Name()] = id
	}
	return branches, nil
}

// BranchNames returns branch names in lexical order.
func (s *Store) BranchNames() ([]string, error) {
	branches, err := s.Branches()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
