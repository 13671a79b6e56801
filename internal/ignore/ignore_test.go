package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	m := Parse([]byte("# comment\n.git/\nbuild\nsecret.txt\n\n*.log\n"))

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{".git", true, true},
		{".git/config", false, true},
		{".git", false, false},
		{"build", true, true},
		{"build", false, true},
		{"build/out/a.o", false, true},
		{"builder.go", false, false},
		{"src/build", true, false},
		{"secret.txt", false, true},
		{"docs/secret.txt", false, false},
		{"app.log", false, true},
		{"main.go", false, false},
		{"", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}

	assert.Equal(t, []string{".git/", "build", "secret.txt", "*.log"}, m.Rules())
}

func TestNegation(t *testing.T) {
	m := New([]string{"vendor", "!vendor/keep.go"})
	assert.True(t, m.Match("vendor/a.go", false))
	assert.False(t, m.Match("vendor/keep.go", false))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	m, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.False(t, m.Match("anything", false))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(DefaultRules), 0644))
	m, err = Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.True(t, m.Match(".git/HEAD", false))
}
