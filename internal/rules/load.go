package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yml
var defaultRules []byte

// record is one entry of a rule definition file. A record carrying a pattern
// is a pattern rule, anything else is an entropy rule.
type record struct {
	ID        string    `yaml:"id"`
	Message   string    `yaml:"message"`
	Severity  *Severity `yaml:"severity"`
	Pattern   *string   `yaml:"pattern"`
	Alphabet  *string   `yaml:"alphabet"`
	Threshold *float64  `yaml:"threshold"`
	MinLength *int      `yaml:"min_length"`
}

func (r record) severity() Severity {
	if r.Severity == nil {
		return Medium
	}
	return *r.Severity
}

func (r record) build() (Rule, error) {
	if r.Pattern != nil {
		if r.Alphabet != nil || r.Threshold != nil || r.MinLength != nil {
			return nil, fmt.Errorf("rule %q: pattern rules do not take entropy settings", r.ID)
		}
		if r.Message == "" {
			return nil, fmt.Errorf("rule %q: missing message", r.ID)
		}
		return NewPattern(r.ID, r.Message, *r.Pattern, r.severity())
	}

	opts := EntropyOptions{ID: r.ID, Message: r.Message, Severity: r.severity()}
	if r.Alphabet != nil {
		if *r.Alphabet == "" {
			return nil, fmt.Errorf("rule %q: empty alphabet", r.ID)
		}
		opts.Alphabet = *r.Alphabet
	}
	if r.Threshold != nil {
		if *r.Threshold <= 0 {
			return nil, fmt.Errorf("rule %q: threshold must be positive", r.ID)
		}
		opts.Threshold = *r.Threshold
	}
	if r.MinLength != nil {
		if *r.MinLength <= 0 {
			return nil, fmt.Errorf("rule %q: min_length must be positive", r.ID)
		}
		opts.MinLength = *r.MinLength
	}
	return NewEntropy(opts)
}

// ParseRules decodes a YAML list of rule records. Any unknown field or
// malformed record fails the whole set.
func ParseRules(data []byte) (*RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var records []record
	if err := dec.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	list := make([]Rule, 0, len(records))
	for i, rec := range records {
		r, err := rec.build()
		if err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i+1, err)
		}
		list = append(list, r)
	}
	return NewRuleSet(list...)
}

// LoadRules reads a rule definition file. An empty path loads the built-in
// rules.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return rs, nil
}

func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRules)
}
