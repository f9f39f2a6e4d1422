package pathglob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		patterns  []string
		recursive bool
		want      string
	}{
		{"no patterns", "README.md", nil, false, ""},
		{"no match", "README.md", []string{"*.txt", "*.yml"}, false, ""},
		{"dotfile by extension", ".hogscan.yml", []string{"*.txt", "*.yml"}, false, "*.yml"},
		{"nested name", "src/app/main.py", []string{"*.py"}, false, "*.py"},
		{"trailing components", "src/app/main.py", []string{"app/*.py"}, false, "app/*.py"},
		{"star does not cross slash", "src/app/main.py", []string{"src/*.py"}, false, ""},
		{"parent ignored when not recursive", ".git/hooks/update.sample", []string{".git/*"}, false, ""},
		{"parent matched when recursive", ".git/hooks/update.sample", []string{".git/*"}, true, ".git/*"},
		{"directory name recursive", "vendor/lib/x.go", []string{"vendor"}, true, "vendor"},
		{"absolute pattern", "/path/to/code.py", []string{"/path/to/*"}, false, "/path/to/*"},
		{"absolute pattern needs full path", "other/path/to/code.py", []string{"/path/to/*"}, false, ""},
		{"pattern longer than path", "code.py", []string{"to/code.py"}, false, ""},
		{"first matching pattern wins", "a/b.yml", []string{"*.yml", "a/*"}, false, "*.yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.path, tt.patterns, tt.recursive))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("*.py"))
	assert.True(t, Valid("/abs/**"))
	assert.False(t, Valid("[unclosed"))
	assert.False(t, MatchOne("x[", "[unclosed"))
}
