package rules

import (
	"errors"
	"fmt"

	"github.com/lockwhz/hogscan/internal/logger"
)

var (
	ErrEmptyRuleSet  = errors.New("empty ruleset")
	ErrDuplicateRule = errors.New("duplicate rule id")
)

// RuleSet is an immutable, ordered collection of detection rules with
// unique ids.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if _, ok := seen[r.ID()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID())
		}
		seen[r.ID()] = struct{}{}
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &RuleSet{rules: out}, nil
}

// Rules returns a copy of the rules in definition order.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil {
		return nil
	}
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

func (rs *RuleSet) Get(id string) (Rule, bool) {
	for _, r := range rs.Rules() {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Select drops rules below floor and rules of disabled kinds. Dropped rules
// are logged. ErrEmptyRuleSet is returned when nothing remains.
func (rs *RuleSet) Select(floor Severity, noEntropy, noPattern bool) (*RuleSet, error) {
	var kept []Rule
	for _, r := range rs.Rules() {
		switch {
		case r.Severity() < floor:
			logger.Log.Warnf("skipping rule %s: severity %s below %s", r.ID(), r.Severity(), floor)
		case noEntropy && KindOf(r) == KindEntropy:
			logger.Log.Infof("skipping rule %s: entropy checks disabled", r.ID())
		case noPattern && KindOf(r) == KindPattern:
			logger.Log.Infof("skipping rule %s: pattern checks disabled", r.ID())
		default:
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyRuleSet
	}
	return &RuleSet{rules: kept}, nil
}
