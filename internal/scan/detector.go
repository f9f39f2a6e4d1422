package scan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/source"
)

// MatchAllRules in a nosecret id list suppresses every rule.
const MatchAllRules = "*"

var nosecretRe = regexp.MustCompile(`(?i)(?:^|\s)nosecret(?::\s?((?:[^,\s]+[,\s]*)+))?`)

// DetectOptions tunes Detect.
type DetectOptions struct {
	Excludes       []*rules.Exclude
	IgnoreNosecret bool
	Context        int
}

// Detect runs every rule over every line of f and returns the issues that
// survive inline suppression and the exclude list. It keeps no state and is
// safe to call concurrently.
func Detect(f *source.File, rs *rules.RuleSet, opts DetectOptions) ([]issue.Issue, error) {
	content, err := f.Read()
	if err != nil {
		return nil, err
	}

	meta := issue.Meta{
		Branch:  f.Branch,
		Message: f.Message,
		Author:  f.Author,
		Commit:  f.Commit,
		Date:    f.Date,
	}
	lines := Lines(content)
	ruleList := rs.Rules()

	var found []issue.Issue
	for i, line := range lines {
		number := i + 1
		lineNo := strconv.Itoa(number)
		location := f.Path + ":" + lineNo

		var suppressed map[string]struct{}
		if !opts.IgnoreNosecret {
			ids, all, ok := ParseNosecret(line)
			if ok && all {
				logger.Log.Infof("nosecret: skipping %s", location)
				continue
			}
			if ok {
				suppressed = make(map[string]struct{}, len(ids))
				for _, id := range ids {
					suppressed[id] = struct{}{}
				}
			}
		}

		for _, rule := range ruleList {
			if _, ok := suppressed[strings.ToLower(rule.ID())]; ok {
				logger.Log.Infof("nosecret: skipping %s in %s", rule.ID(), location)
				continue
			}

			for _, secret := range rule.FindAll(line) {
				if ex := rules.FirstMatch(opts.Excludes, f.Path, rule.ID(), line); ex != nil {
					logger.Log.Infof("exclude: skipping %s in %s (%s)", rule.ID(), location, ex.Message)
					continue
				}
				found = append(found, issue.New(rule, f.Path, lineNo, secret, ContextLines(lines, number, opts.Context), meta))
			}
		}
	}
	return found, nil
}

// ParseNosecret reads an inline suppression marker. ok reports whether the
// marker is present; all is set when it names no rule or the wildcard.
// Rule ids are lower-cased.
func ParseNosecret(line string) (ids []string, all bool, ok bool) {
	m := nosecretRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false, false
	}
	if m[1] == "" {
		return nil, true, true
	}

	for _, id := range strings.FieldsFunc(m[1], func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
	}) {
		id = strings.ToLower(id)
		if id == MatchAllRules {
			return nil, true, true
		}
		ids = append(ids, id)
	}
	return ids, false, true
}

// Lines splits content into lines without their terminators. A trailing
// newline does not start an extra line.
func Lines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ContextLines returns the lines around the 1-indexed line keyed by their
// line number, clamped to the content.
func ContextLines(lines []string, line, n int) map[string]string {
	lower := max(0, line-n-1)
	upper := min(len(lines), line+n)

	out := make(map[string]string, upper-lower)
	for i := lower; i < upper; i++ {
		out[strconv.Itoa(i+1)] = lines[i]
	}
	return out
}
