package issue

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Aggregate flattens the lists and drops repeated findings. The first
// occurrence of each identity is kept; the result is sorted.
func Aggregate(lists ...[]Issue) []Issue {
	size := 0
	for _, l := range lists {
		size += len(l)
	}

	seen := make(map[string]struct{}, size)
	out := make([]Issue, 0, size)
	for _, l := range lists {
		for _, i := range l {
			key := i.ID.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, i)
		}
	}
	Sort(out)
	return out
}

// Diff returns the findings present in only one of old and new. With onlyNew
// set, findings of old are never returned.
func Diff(old, new []Issue, onlyNew bool) []Issue {
	inOld := index(old)
	inNew := index(new)

	var out []Issue
	for _, i := range Aggregate(new) {
		if _, ok := inOld[i.ID.String()]; !ok {
			out = append(out, i)
		}
	}
	if !onlyNew {
		for _, i := range Aggregate(old) {
			if _, ok := inNew[i.ID.String()]; !ok {
				out = append(out, i)
			}
		}
	}
	Sort(out)
	return out
}

func index(issues []Issue) map[string]struct{} {
	m := make(map[string]struct{}, len(issues))
	for _, i := range issues {
		m[i.ID.String()] = struct{}{}
	}
	return m
}

// CountByRule returns rule id -> number of findings.
func CountByRule(issues []Issue) map[string]int {
	tally := make(map[string]int)
	for _, i := range issues {
		tally[i.Rule.ID]++
	}
	return tally
}

// Sort orders issues by descending severity, then rule message, path and
// line number.
func Sort(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.Rule.Severity != y.Rule.Severity {
			return x.Rule.Severity > y.Rule.Severity
		}
		if mx, my := strings.ToLower(x.Rule.Message), strings.ToLower(y.Rule.Message); mx != my {
			return mx < my
		}
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		if lx, ly := lineNumber(x.Line), lineNumber(y.Line); lx != ly {
			return lx < ly
		}
		return x.ID.String() < y.ID.String()
	})
}

func lineNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Load reads a JSON report, typically a baseline of an earlier scan.
func Load(path string) ([]Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	var issues []Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return issues, nil
}
