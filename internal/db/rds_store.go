package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id            TEXT PRIMARY KEY,
	repository_id TEXT NOT NULL,
	repository    TEXT NOT NULL,
	status        TEXT NOT NULL,
	issues        INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id            UUID PRIMARY KEY,
	issue_id      UUID NOT NULL,
	scan_id       TEXT NOT NULL,
	repository_id TEXT NOT NULL,
	rule_id       TEXT NOT NULL,
	severity      TEXT NOT NULL,
	path          TEXT NOT NULL,
	line          INTEGER NOT NULL,
	branch        TEXT,
	commit_hash   TEXT,
	author        TEXT,
	committed_at  TIMESTAMPTZ,
	context_lines TEXT[],
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (repository_id, issue_id)
);`

const insertIssue = `INSERT INTO issues (
	id, issue_id, scan_id, repository_id, rule_id, severity, path, line,
	branch, commit_hash, author, committed_at, context_lines, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (repository_id, issue_id) DO NOTHING`

const upsertScan = `INSERT INTO scans (id, repository_id, repository, status, issues, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, issues = GREATEST(scans.issues, EXCLUDED.issues), updated_at = EXCLUDED.updated_at`

// RDSStore implements DataStore on PostgreSQL (RDS).
type RDSStore struct {
	DB *sql.DB
}

func (r *RDSStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *RDSStore) UpdateScanStatus(ctx context.Context, job *models.ScanJob, status string) error {
	start := time.Now()
	defer logger.Trace("UpdateScanStatus", start)

	_, err := r.DB.ExecContext(ctx, upsertScan,
		job.ScanID, job.RepositoryID, job.RepositoryFullName, status, 0, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update status of scan %s: %w", job.ScanID, err)
	}
	return nil
}

// SaveIssues inserts the issues of a scan in one transaction. Issues
// already stored for the repository are skipped; the number of new rows is
// returned.
func (r *RDSStore) SaveIssues(ctx context.Context, job *models.ScanJob, issues []issue.Issue) (int, error) {
	start := time.Now()
	defer logger.Trace("SaveIssues", start)

	rows := issueRows(job, issues, time.Now().UTC())
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertIssue)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, v := range rows {
		res, err := stmt.ExecContext(ctx,
			uuid.New(),
			v.IssueID,
			v.ScanID,
			v.RepositoryID,
			v.RuleID,
			v.Severity,
			v.Path,
			v.Line,
			v.Branch,
			v.Commit,
			v.Author,
			v.CommittedAt,
			pq.Array(v.Context),
			v.CreatedAt,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if _, err := r.DB.ExecContext(ctx, upsertScan,
		job.ScanID, job.RepositoryID, job.RepositoryFullName, models.StatusRunning, len(rows), time.Now().UTC()); err != nil {
		logger.Log.Warnf("update issue count of scan %s: %v", job.ScanID, err)
	}
	return inserted, nil
}

type issueRow struct {
	IssueID      uuid.UUID
	ScanID       string
	RepositoryID string
	RuleID       string
	Severity     string
	Path         string
	Line         int
	Branch       sql.NullString
	Commit       sql.NullString
	Author       sql.NullString
	CommittedAt  sql.NullTime
	Context      []string
	CreatedAt    time.Time
}

// issueRows flattens issues into rows, one per identity.
func issueRows(job *models.ScanJob, issues []issue.Issue, now time.Time) []issueRow {
	unique := issue.Aggregate(issues)
	rows := make([]issueRow, 0, len(unique))
	for _, i := range unique {
		line, _ := parseLine(i.Line)
		rows = append(rows, issueRow{
			IssueID:      i.ID,
			ScanID:       job.ScanID,
			RepositoryID: job.RepositoryID,
			RuleID:       i.Rule.ID,
			Severity:     i.Rule.Severity.String(),
			Path:         i.Path,
			Line:         line,
			Branch:       nullString(i.Branch),
			Commit:       nullString(i.Commit),
			Author:       nullString(i.Author),
			CommittedAt:  parseDate(i.Date),
			Context:      contextLines(i),
			CreatedAt:    now,
		})
	}
	return rows
}

func parseLine(s string) (int, error) {
	return strconv.Atoi(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// parseDate accepts RFC 3339 and git's "2006-01-02 15:04:05 -0700" layout.
func parseDate(d string) sql.NullTime {
	if d == "" {
		return sql.NullTime{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05 -0700"} {
		if t, err := time.Parse(layout, d); err == nil {
			return sql.NullTime{Time: t.UTC(), Valid: true}
		}
	}
	return sql.NullTime{}
}

// contextLines renders the issue context as "line: text", ordered by line
// number.
func contextLines(i issue.Issue) []string {
	keys := make([]string, 0, len(i.Context))
	for k := range i.Context {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		na, _ := strconv.Atoi(keys[a])
		nb, _ := strconv.Atoi(keys[b])
		return na < nb
	})
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+": "+i.Context[k])
	}
	return out
}
