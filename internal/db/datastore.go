// Package db persists scan results to PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/models"
)

// DataStore records scan status and the issues found by a scan.
type DataStore interface {
	UpdateScanStatus(ctx context.Context, job *models.ScanJob, status string) error
	SaveIssues(ctx context.Context, job *models.ScanJob, issues []issue.Issue) (int, error)
}

// Open connects with lib/pq and checks the connection.
func Open(ctx context.Context, connString string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}
