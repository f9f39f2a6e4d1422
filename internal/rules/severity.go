package rules

import (
	"fmt"
	"strings"
)

// Severity of issues detected by a rule. Values are ordered so they can be
// compared against a configured floor and used for sorting.
type Severity int

const (
	Low Severity = iota + 1
	Medium
	High
)

var severityNames = map[Severity]string{
	Low:    "LOW",
	Medium: "MEDIUM",
	High:   "HIGH",
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return Low, nil
	case "MEDIUM":
		return Medium, nil
	case "HIGH":
		return High, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Set and Type let Severity be used directly as a command-line flag value.
func (s *Severity) Set(v string) error { return s.UnmarshalText([]byte(v)) }

func (s *Severity) Type() string { return "severity" }
