package ignore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the rules file read from the repository root.
const FileName = ".ignore"

// DefaultRules is written by init when no rules file exists.
const DefaultRules = ".git/\n"

// Matcher decides whether a working path is excluded from tracking. Every
// rule is anchored at the repository root and covers the named path and
// everything beneath it; a trailing "/" limits a rule to directories. Glob
// syntax and "!" negation follow gitignore.
type Matcher struct {
	rules   []string
	matcher gitignore.Matcher
}

// Load reads the rules file at path. A missing file yields an empty matcher.
func Load(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ignore rules: %w", err)
	}
	return Parse(data), nil
}

// Parse builds a matcher from rules file content. Blank lines and lines
// starting with "#" are skipped.
func Parse(data []byte) *Matcher {
	var rules []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return New(rules)
}

func New(rules []string) *Matcher {
	patterns := make([]gitignore.Pattern, 0, len(rules))
	for _, rule := range rules {
		patterns = append(patterns, gitignore.ParsePattern(anchor(rule), nil))
	}
	return &Matcher{
		rules:   rules,
		matcher: gitignore.NewMatcher(patterns),
	}
}

// anchor pins a rule to the root so "build" means ./build and not any
// directory named build.
func anchor(rule string) string {
	negate := strings.HasPrefix(rule, "!")
	rule = strings.TrimPrefix(rule, "!")
	rule = strings.TrimPrefix(rule, "./")
	if !strings.HasPrefix(rule, "/") {
		rule = "/" + rule
	}
	if negate {
		return "!" + rule
	}
	return rule
}

// Match reports whether the slash separated path is ignored.
func (m *Matcher) Match(path string, isDir bool) bool {
	if path == "" || len(m.rules) == 0 {
		return false
	}
	return m.matcher.Match(strings.Split(path, "/"), isDir)
}

// Rules returns the active rules in file order.
func (m *Matcher) Rules() []string {
	return append([]string(nil), m.rules...)
}
