// Package source turns a working tree and its git history into a uniform
// stream of scannable files.
package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ConfigFile is the per-repository configuration file name. It is never
// scanned.
const ConfigFile = ".hogscan.yml"

// DefaultExclude is always added to the caller's exclusion globs.
var DefaultExclude = []string{ConfigFile, ".git"}

// File is one scannable unit: either a whole file of the working tree or
// the diff text of one file in one commit transition. Commit metadata is
// empty for working tree files.
type File struct {
	Path    string
	Branch  string
	Message string
	Commit  string
	Author  string
	Date    string

	content *string
	real    string
}

// Source produces files one at a time. Walk stops at the first error
// returned by fn.
type Source interface {
	Walk(ctx context.Context, fn func(*File) error) error
}

var (
	_ Source = (*DirIterator)(nil)
	_ Source = (*HistoryIterator)(nil)
)

// NewFile returns a working tree file whose content is read from real on
// demand.
func NewFile(path, real string) *File {
	return &File{Path: path, real: real}
}

// NewBlob returns a file with in-memory content.
func NewBlob(path, content string) *File {
	return &File{Path: path, content: &content}
}

// Read returns the file content. Working tree files that do not look like
// text read as empty.
func (f *File) Read() (string, error) {
	if f.content != nil {
		return *f.content, nil
	}
	if f.real == "" {
		return "", fmt.Errorf("%s: no content", f.Path)
	}

	data, err := os.ReadFile(f.real)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	if !isText(data) {
		return "", nil
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// Historical reports whether the file comes from a commit diff.
func (f *File) Historical() bool { return f.Commit != "" }

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

func excludeSet(extra []string) []string {
	out := make([]string, 0, len(DefaultExclude)+len(extra))
	out = append(out, DefaultExclude...)
	return append(out, extra...)
}
