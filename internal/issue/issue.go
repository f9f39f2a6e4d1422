// Package issue defines reported findings, their identity and the helpers
// that merge findings from many files into one deduplicated set.
package issue

import (
	"github.com/google/uuid"

	"github.com/lockwhz/hogscan/internal/rules"
)

// RuleRef is the part of a rule carried by an issue.
type RuleRef struct {
	ID       string         `json:"id"`
	Message  string         `json:"message"`
	Severity rules.Severity `json:"severity"`
}

// Issue is one finding. Two issues are the same finding iff their IDs are
// equal; commit metadata does not take part in the identity.
type Issue struct {
	ID      uuid.UUID         `json:"id"`
	Rule    RuleRef           `json:"rule"`
	Path    string            `json:"path"`
	Line    string            `json:"line"`
	Secret  string            `json:"secret"`
	Context map[string]string `json:"context"`
	Branch  string            `json:"branch"`
	Message string            `json:"message"`
	Author  string            `json:"author"`
	Commit  string            `json:"commit"`
	Date    string            `json:"date"`
}

// Meta is the commit metadata attached verbatim to issues found in history.
type Meta struct {
	Branch  string
	Message string
	Author  string
	Commit  string
	Date    string
}

// ID derives the identity of a finding from the rule namespace, the path
// and the secret.
func ID(namespace uuid.UUID, path, secret string) uuid.UUID {
	return uuid.NewMD5(namespace, []byte(path+":"+secret))
}

func New(rule rules.Rule, path, line, secret string, context map[string]string, meta Meta) Issue {
	return Issue{
		ID: ID(rule.Namespace(), path, secret),
		Rule: RuleRef{
			ID:       rule.ID(),
			Message:  rule.Message(),
			Severity: rule.Severity(),
		},
		Path:    path,
		Line:    line,
		Secret:  secret,
		Context: context,
		Branch:  meta.Branch,
		Message: meta.Message,
		Author:  meta.Author,
		Commit:  meta.Commit,
		Date:    meta.Date,
	}
}

// Equal reports whether both issues describe the same finding.
func (i Issue) Equal(other Issue) bool { return i.ID == other.ID }

// ContextLine returns the text of the issue's own line.
func (i Issue) ContextLine() string { return i.Context[i.Line] }
