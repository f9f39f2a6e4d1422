// Package models holds the messages exchanged with the job queue.
package models

import (
	"errors"
	"time"
)

// ScanJob asks the worker to scan one repository.
type ScanJob struct {
	ScanID             string    `json:"scan_id"`
	RepositoryID       string    `json:"repository_id"`
	RepositoryFullName string    `json:"repository_full_name"` // e.g. "org/repo"
	RepositoryURL      string    `json:"repository_url,omitempty"`
	Branch             string    `json:"branch,omitempty"`
	Depth              int       `json:"depth,omitempty"`
	Since              string    `json:"since,omitempty"`
	MessageCreatedAt   time.Time `json:"message_created_at"`

	ReceiptHandle string `json:"-"`
}

// Scan status values.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Validate checks that the job names a scan and a repository.
func (j *ScanJob) Validate() error {
	if j.ScanID == "" {
		return errors.New("missing scan_id")
	}
	if j.RepositoryFullName == "" && j.RepositoryURL == "" {
		return errors.New("missing repository_full_name or repository_url")
	}
	return nil
}
