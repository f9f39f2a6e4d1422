package rules

import (
	"fmt"
	"regexp"

	"github.com/lockwhz/hogscan/internal/pathglob"
)

// Exclude is an allowlist entry. It suppresses issues by rule id or by a
// pattern found in the issue line, optionally restricted to paths. An entry
// with neither id nor pattern suppresses everything under its paths.
type Exclude struct {
	Message string
	ID      string
	Pattern *regexp.Regexp
	Paths   []string
}

// ExcludeSpec is the definition format of an exclude entry.
type ExcludeSpec struct {
	Message string   `yaml:"message" json:"message" mapstructure:"message"`
	ID      string   `yaml:"id,omitempty" json:"id,omitempty" mapstructure:"id"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty" mapstructure:"pattern"`
	Paths   []string `yaml:"paths,omitempty" json:"paths,omitempty" mapstructure:"paths"`
}

// Compile validates the definition and builds an Exclude.
func (s ExcludeSpec) Compile() (*Exclude, error) {
	e := &Exclude{Message: s.Message, ID: s.ID, Paths: s.Paths}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("exclude %q: %w", s.Message, err)
		}
		e.Pattern = re
	}
	for _, p := range s.Paths {
		if !pathglob.Valid(p) {
			return nil, fmt.Errorf("exclude %q: invalid path glob %q", s.Message, p)
		}
	}
	return e, nil
}

// CompileExcludes compiles every definition, failing on the first invalid one.
func CompileExcludes(specs []ExcludeSpec) ([]*Exclude, error) {
	out := make([]*Exclude, 0, len(specs))
	for _, s := range specs {
		e, err := s.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// PathOnly reports whether the entry carries neither id nor pattern.
func (e *Exclude) PathOnly() bool {
	return e.ID == "" && e.Pattern == nil
}

// Matches reports whether the entry suppresses an issue of rule ruleID at
// path whose own line is line.
func (e *Exclude) Matches(path, ruleID, line string) bool {
	if len(e.Paths) > 0 && pathglob.Match(path, e.Paths, true) == "" {
		return false
	}
	if e.PathOnly() {
		return true
	}
	if e.ID != "" && e.ID == ruleID {
		return true
	}
	return e.Pattern != nil && e.Pattern.MatchString(line)
}

// PathFilters collects the paths of path-only entries. Sources use them to
// skip excluded files before they are read.
func PathFilters(excludes []*Exclude) []string {
	var out []string
	for _, e := range excludes {
		if e.PathOnly() {
			out = append(out, e.Paths...)
		}
	}
	return out
}

// FirstMatch returns the first entry suppressing the issue, or nil.
func FirstMatch(excludes []*Exclude, path, ruleID, line string) *Exclude {
	for _, e := range excludes {
		if e.Matches(path, ruleID, line) {
			return e
		}
	}
	return nil
}
