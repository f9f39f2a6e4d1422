package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/models"
)

func TestParseDate(t *testing.T) {
	d := parseDate("2023-01-01T15:00:00Z")
	require.True(t, d.Valid)
	assert.Equal(t, time.Date(2023, 1, 1, 15, 0, 0, 0, time.UTC), d.Time)

	d = parseDate("2023-01-01 12:00:00 -0300")
	require.True(t, d.Valid)
	assert.Equal(t, time.Date(2023, 1, 1, 15, 0, 0, 0, time.UTC), d.Time)

	assert.False(t, parseDate("").Valid)
	assert.False(t, parseDate("yesterday").Valid)
}

func TestIssueRows(t *testing.T) {
	rule, err := rules.NewPattern("bad-password", "Bad password", "letmein", rules.High)
	require.NoError(t, err)

	ctx := map[string]string{"10": "pw = letmein", "9": "# login", "11": ""}
	meta := issue.Meta{Branch: "master", Commit: "abc", Author: "Jane <jane@example.com>", Date: "2023-01-01T15:00:00Z"}
	found := issue.New(rule, "app.py", "10", "letmein", ctx, meta)
	current := issue.New(rule, "cfg.py", "2", "letmein", map[string]string{"2": "letmein"}, issue.Meta{})

	job := &models.ScanJob{ScanID: "s1", RepositoryID: "r1"}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := issueRows(job, []issue.Issue{found, found, current}, now)
	require.Len(t, rows, 2)

	byPath := map[string]issueRow{}
	for _, r := range rows {
		byPath[r.Path] = r
	}

	r := byPath["app.py"]
	assert.Equal(t, found.ID, r.IssueID)
	assert.Equal(t, "s1", r.ScanID)
	assert.Equal(t, "r1", r.RepositoryID)
	assert.Equal(t, "bad-password", r.RuleID)
	assert.Equal(t, "HIGH", r.Severity)
	assert.Equal(t, 10, r.Line)
	assert.Equal(t, "master", r.Branch.String)
	assert.True(t, r.Commit.Valid)
	assert.True(t, r.CommittedAt.Valid)
	assert.Equal(t, []string{"9: # login", "10: pw = letmein", "11: "}, r.Context)
	assert.Equal(t, now, r.CreatedAt)

	r = byPath["cfg.py"]
	assert.False(t, r.Branch.Valid)
	assert.False(t, r.Commit.Valid)
	assert.False(t, r.Author.Valid)
	assert.False(t, r.CommittedAt.Valid)
}

func TestIssueRowsEmpty(t *testing.T) {
	assert.Empty(t, issueRows(&models.ScanJob{}, nil, time.Now()))
}
