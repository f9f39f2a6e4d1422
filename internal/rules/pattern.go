package rules

import (
	"fmt"
	"regexp"
)

// Pattern reports every non-overlapping match of a regular expression. The
// full match is reported, never a capture group, so issue identities stay
// reproducible whatever groups the expression declares.
type Pattern struct {
	base
	pattern *regexp.Regexp
}

func NewPattern(id, message, pattern string, severity Severity) (*Pattern, error) {
	if id == "" {
		return nil, fmt.Errorf("pattern rule: missing id")
	}
	if pattern == "" {
		return nil, fmt.Errorf("pattern rule %q: missing pattern", id)
	}
	if severity != 0 && !severity.Valid() {
		return nil, fmt.Errorf("pattern rule %q: invalid severity", id)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern rule %q: %w", id, err)
	}
	return &Pattern{base: newBase(id, message, severity), pattern: re}, nil
}

func (p *Pattern) Pattern() string { return p.pattern.String() }

func (p *Pattern) FindAll(line string) []string {
	return p.pattern.FindAllString(line, -1)
}
