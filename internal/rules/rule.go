// Package rules holds the detection rules (entropy and pattern based), the
// exclusion rules and the loader for rule definition files.
package rules

import (
	"github.com/google/uuid"
)

// Rule is a named detector. FindAll returns every substring of line the
// rule considers a secret, in order of appearance.
type Rule interface {
	ID() string
	Message() string
	Severity() Severity
	Namespace() uuid.UUID
	FindAll(line string) []string
}

// Kind distinguishes entropy rules from pattern rules.
type Kind string

const (
	KindEntropy Kind = "entropy"
	KindPattern Kind = "pattern"
)

// KindOf returns the kind of r.
func KindOf(r Rule) Kind {
	if _, ok := r.(*Entropy); ok {
		return KindEntropy
	}
	return KindPattern
}

// Namespace derives the identity namespace of a rule from its id. Identical
// ids always produce identical namespaces, across runs and processes.
func Namespace(id string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte(id))
}

type base struct {
	id        string
	message   string
	severity  Severity
	namespace uuid.UUID
}

func newBase(id, message string, severity Severity) base {
	if severity == 0 {
		severity = Medium
	}
	return base{id: id, message: message, severity: severity, namespace: Namespace(id)}
}

func (b *base) ID() string           { return b.id }
func (b *base) Message() string      { return b.message }
func (b *base) Severity() Severity   { return b.severity }
func (b *base) Namespace() uuid.UUID { return b.namespace }
