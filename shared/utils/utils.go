package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"
)

func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// IsHash reports whether s looks like a full object id.
func IsHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NormalizePath turns user input into a slash separated path relative to the
// repository root. A leading "./" is dropped, "." and "" mean the root (the
// empty string), and dir reports whether the input ended with "/".
func NormalizePath(p string) (clean string, dir bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	dir = strings.HasSuffix(p, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "" || p == "." || p == "/" {
		return "", true
	}
	clean = path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." {
		return "", true
	}
	return clean, dir
}

// Under reports whether p equals dir or lies beneath it. The root ("")
// contains every path.
func Under(p, dir string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ShortID abbreviates an object id for display.
func ShortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
