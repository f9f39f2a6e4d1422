package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/source"
)

func letmeinRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	p, err := rules.NewPattern("bad-password-letmein", "Bad Password 'letmein'", "letmein", rules.High)
	require.NoError(t, err)
	rs, err := rules.NewRuleSet(p)
	require.NoError(t, err)
	return rs
}

func detect(t *testing.T, f *source.File, rs *rules.RuleSet, opts DetectOptions) []issue.Issue {
	t.Helper()
	found, err := Detect(f, rs, opts)
	require.NoError(t, err)
	return found
}

func TestDetectPattern(t *testing.T) {
	f := source.NewBlob("/path/to/code.py", "password = 'letmein'")
	found := detect(t, f, letmeinRules(t), DetectOptions{})

	require.Len(t, found, 1)
	assert.Equal(t, "letmein", found[0].Secret)
	assert.Equal(t, "1", found[0].Line)
	assert.Equal(t, "/path/to/code.py", found[0].Path)
	assert.Equal(t, map[string]string{"1": "password = 'letmein'"}, found[0].Context)
	assert.Equal(t, "bfd860e4-2002-30dd-a1b1-24e29083c7d5", found[0].ID.String())
}

func TestDetectEntropy(t *testing.T) {
	e, err := rules.NewEntropy(rules.EntropyOptions{})
	require.NoError(t, err)
	rs, err := rules.NewRuleSet(e)
	require.NoError(t, err)

	f := source.NewBlob("/path/to/code.py", "password = 'abcdefghijklmnopqrstuvwxyz'")
	found := detect(t, f, rs, DetectOptions{})
	require.Len(t, found, 1)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz", found[0].Secret)
}

func TestDetectExcludes(t *testing.T) {
	rs := letmeinRules(t)
	f := source.NewBlob("/path/to/code.py", "password = 'letmein'")

	byPath, err := rules.CompileExcludes([]rules.ExcludeSpec{{Message: "python", Paths: []string{"*.py"}}})
	require.NoError(t, err)
	assert.Empty(t, detect(t, f, rs, DetectOptions{Excludes: byPath}))

	byPattern, err := rules.CompileExcludes([]rules.ExcludeSpec{{Message: "test value", Pattern: "letmein"}})
	require.NoError(t, err)
	assert.Empty(t, detect(t, source.NewBlob("any/where.go", "pw := \"letmein\""), rs, DetectOptions{Excludes: byPattern}))

	otherRule, err := rules.CompileExcludes([]rules.ExcludeSpec{{Message: "other", ID: "something-else"}})
	require.NoError(t, err)
	assert.Len(t, detect(t, f, rs, DetectOptions{Excludes: otherRule}), 1)

	otherPath, err := rules.CompileExcludes([]rules.ExcludeSpec{{Message: "go only", Paths: []string{"*.go"}}})
	require.NoError(t, err)
	assert.Len(t, detect(t, f, rs, DetectOptions{Excludes: otherPath}), 1)
}

func TestDetectNosecret(t *testing.T) {
	rs := letmeinRules(t)

	tests := []struct {
		name    string
		content string
		ignore  bool
		want    []string
	}{
		{"bare marker", "password = 'letmein'  # nosecret", false, nil},
		{"named rule", "password = 'letmein'  # nosecret: bad-password-letmein", false, nil},
		{"named rule upper case", "password = 'letmein'  # NOSECRET: Bad-Password-Letmein", false, nil},
		{"other rule", "password = 'letmein'  # nosecret: other-rule", false, []string{"1"}},
		{"ignored", "password = 'letmein'  # nosecret", true, []string{"1"}},
		{
			"adjacent lines unaffected",
			"a = 'letmein'\nb = 'letmein'  # nosecret\nc = 'letmein'\n",
			false,
			[]string{"1", "3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := detect(t, source.NewBlob("code.py", tt.content), rs, DetectOptions{IgnoreNosecret: tt.ignore})
			var lines []string
			for _, i := range found {
				lines = append(lines, i.Line)
			}
			assert.Equal(t, tt.want, lines)
		})
	}
}

func TestDetectContextAndMetadata(t *testing.T) {
	f := source.NewBlob("code.py", "username = 'admin'\npassword = 'letmein'\nauthorize(username, password)\nend\n")
	f.Branch = "main"
	f.Commit = "abc123"
	f.Author = "Jane Doe <jane@example.com>"
	f.Message = "add login"
	f.Date = "2023-01-01T12:00:00Z"

	found := detect(t, f, letmeinRules(t), DetectOptions{Context: 1})
	require.Len(t, found, 1)

	i := found[0]
	assert.Equal(t, "2", i.Line)
	assert.Equal(t, map[string]string{
		"1": "username = 'admin'",
		"2": "password = 'letmein'",
		"3": "authorize(username, password)",
	}, i.Context)
	assert.Equal(t, "main", i.Branch)
	assert.Equal(t, "abc123", i.Commit)
	assert.Equal(t, "Jane Doe <jane@example.com>", i.Author)
	assert.Equal(t, "add login", i.Message)
	assert.Equal(t, "2023-01-01T12:00:00Z", i.Date)
}

func TestDetectMultipleMatchesPerLine(t *testing.T) {
	found := detect(t, source.NewBlob("x.txt", "letmein letmein"), letmeinRules(t), DetectOptions{})
	assert.Len(t, found, 2)
	assert.Len(t, issue.Aggregate(found), 1)
}

func TestDetectReadError(t *testing.T) {
	_, err := Detect(source.NewFile("gone.txt", "/nonexistent/gone.txt"), letmeinRules(t), DetectOptions{})
	assert.Error(t, err)
}

func TestParseNosecret(t *testing.T) {
	tests := []struct {
		line string
		ids  []string
		all  bool
		ok   bool
	}{
		{"token = get_token()  # not secret", nil, false, false},
		{"token = get_token()  # nosecret", nil, true, true},
		{"nosecret", nil, true, true},
		{"token = get_token()  # nosecret: rule-id", []string{"rule-id"}, false, true},
		{"token := getToken() // nosecret: id1,id2", []string{"id1", "id2"}, false, true},
		{"token := getToken() // NOSECRET:id1, id2", []string{"id1", "id2"}, false, true},
		{"token := getToken() // nosecret: *", nil, true, true},
		{"token := getToken() //nosecret", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			ids, all, ok := ParseNosecret(tt.line)
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.all, all)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLines(t *testing.T) {
	assert.Nil(t, Lines(""))
	assert.Equal(t, []string{"a", "b"}, Lines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, Lines("a\r\nb"))
	assert.Equal(t, []string{"a", "", "b"}, Lines("a\n\nb"))
}

func TestContextLines(t *testing.T) {
	lines := []string{"one", "two", "three", "four"}

	assert.Equal(t, map[string]string{"2": "two"}, ContextLines(lines, 2, 0))
	assert.Equal(t, map[string]string{"1": "one", "2": "two", "3": "three"}, ContextLines(lines, 2, 1))
	assert.Equal(t, map[string]string{"1": "one", "2": "two"}, ContextLines(lines, 1, 1))
	assert.Equal(t, map[string]string{"2": "two", "3": "three", "4": "four"}, ContextLines(lines, 4, 2))
	assert.Len(t, ContextLines(lines, 2, 10), 4)
}
