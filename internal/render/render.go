// Package render writes scan reports.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/rules"
)

type Format string

const (
	Text Format = "text"
	JSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, JSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Set and Type let Format be used as a command-line flag value.
func (f *Format) Set(v string) error {
	parsed, err := ParseFormat(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *Format) String() string { return string(*f) }

func (f *Format) Type() string { return "format" }

// Render writes issues in the given format. Issues are sorted first.
func Render(w io.Writer, issues []issue.Issue, format Format) error {
	sorted := make([]issue.Issue, len(issues))
	copy(sorted, issues)
	issue.Sort(sorted)

	switch format {
	case JSON:
		return writeJSON(w, sorted)
	case Text, "":
		return writeText(w, sorted)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func writeJSON(w io.Writer, issues []issue.Issue) error {
	if issues == nil {
		issues = []issue.Issue{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(issues)
}

var (
	bold   = color.New(color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	secret = color.New(color.FgRed, color.Bold).SprintFunc()
)

func severityColor(s rules.Severity) func(a ...interface{}) string {
	switch s {
	case rules.High:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case rules.Medium:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}

func writeText(w io.Writer, issues []issue.Issue) error {
	var b strings.Builder
	for _, i := range issues {
		sev := severityColor(i.Rule.Severity)
		fmt.Fprintf(&b, "%s %s\n", sev(i.Rule.Severity.String()), bold(i.Rule.Message))
		fmt.Fprintf(&b, "  %s %s:%s\n", gray("path  "), i.Path, i.Line)
		for _, kv := range [][2]string{
			{"branch", i.Branch},
			{"commit", i.Commit},
			{"author", i.Author},
			{"date  ", i.Date},
		} {
			if kv[1] != "" {
				fmt.Fprintf(&b, "  %s %s\n", gray(kv[0]), kv[1])
			}
		}
		if i.Message != "" {
			fmt.Fprintf(&b, "  %s %s\n", gray("commit message"), firstLine(i.Message))
		}

		numbers := contextNumbers(i.Context)
		width := 0
		for _, n := range numbers {
			width = max(width, len(strconv.Itoa(n)))
		}
		for _, n := range numbers {
			key := strconv.Itoa(n)
			text := i.Context[key]
			if key == i.Line {
				text = strings.ReplaceAll(text, i.Secret, secret(i.Secret))
			}
			fmt.Fprintf(&b, "  %s  %s\n", gray(fmt.Sprintf("%*d", width, n)), text)
		}
		b.WriteString("\n")
	}

	if len(issues) > 0 {
		fmt.Fprintf(&b, "%s\n", summary(issues))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func contextNumbers(ctx map[string]string) []int {
	numbers := make([]int, 0, len(ctx))
	for k := range ctx {
		if n, err := strconv.Atoi(k); err == nil {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers
}

func summary(issues []issue.Issue) string {
	counts := issue.CountByRule(issues)
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s=%d", id, counts[id]))
	}
	return fmt.Sprintf("%d issues found (%s)", len(issues), strings.Join(parts, ", "))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
