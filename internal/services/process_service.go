package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/lockwhz/hogscan/config"
	"github.com/lockwhz/hogscan/internal/db"
	"github.com/lockwhz/hogscan/internal/git"
	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/scan"
	"github.com/lockwhz/hogscan/models"
)

// ScannerFactory builds the scanner for one job once its repository is on
// disk at path.
type ScannerFactory func(job *models.ScanJob, path string) (scan.Scanner, error)

// TruffleFactory loads the repository's own .hogscan.yml, applies the job's
// source selectors and scans with rs.
func TruffleFactory(rs *rules.RuleSet, auth transport.AuthMethod) ScannerFactory {
	return func(job *models.ScanJob, path string) (scan.Scanner, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if job.Branch != "" {
			cfg.Branch = job.Branch
		}
		if job.Depth > 0 {
			cfg.Depth = job.Depth
		}
		if job.Since != "" {
			cfg.Since = job.Since
		}
		return &scan.TruffleScanner{Config: cfg, Rules: rs, Auth: auth}, nil
	}
}

// Processor runs the full flow of a job.
type Processor struct {
	Store       db.DataStore
	Git         git.GitClient
	NewScanner  ScannerFactory
	RepoURL     func(fullName string) string
	EnableClone bool
	EnableScan  bool
	EnableStore bool
}

// ProcessJob marks the scan running, clones the repository, scans it and
// stores the issues. Any failure marks the scan as errored.
func (p *Processor) ProcessJob(ctx context.Context, job *models.ScanJob) error {
	start := time.Now()
	logger.Log.Debugf("ProcessService: starting job %s", job.ScanID)

	if err := p.status(ctx, job, models.StatusRunning); err != nil {
		return err
	}

	issues, err := p.run(ctx, job)
	if err != nil {
		if serr := p.status(ctx, job, models.StatusError); serr != nil {
			logger.Log.Errorf("ProcessService: %v", serr)
		}
		return err
	}

	if p.EnableStore && p.Store != nil {
		n, err := p.Store.SaveIssues(ctx, job, issues)
		if err != nil {
			if serr := p.status(ctx, job, models.StatusError); serr != nil {
				logger.Log.Errorf("ProcessService: %v", serr)
			}
			return fmt.Errorf("ProcessService: save issues of job %s: %w", job.ScanID, err)
		}
		logger.Log.Debugf("ProcessService: %d new issues stored for job %s", n, job.ScanID)
	}

	if err := p.status(ctx, job, models.StatusSuccess); err != nil {
		logger.Log.Errorf("ProcessService: %v", err)
	}

	logger.Log.Infof("ProcessService: job %s done in %d ms, %d issues", job.ScanID, time.Since(start).Milliseconds(), len(issues))
	return nil
}

func (p *Processor) run(ctx context.Context, job *models.ScanJob) ([]issue.Issue, error) {
	path := job.RepositoryURL
	if path == "" && p.RepoURL != nil {
		path = p.RepoURL(job.RepositoryFullName)
	}

	if p.EnableClone {
		dir, err := p.Git.CloneRepo(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("ProcessService: clone %s: %w", path, err)
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				logger.Log.Warnf("ProcessService: remove clone %s: %v", dir, err)
			}
		}()
		logger.Log.Debugf("ProcessService: cloned into %s", dir)
		path = dir
	} else {
		logger.Log.Debug("ProcessService: clone disabled, scanning in place")
	}

	if !p.EnableScan {
		logger.Log.Debug("ProcessService: scan disabled")
		return nil, nil
	}

	s, err := p.NewScanner(job, path)
	if err != nil {
		return nil, fmt.Errorf("ProcessService: configure scan of %s: %w", path, err)
	}
	issues, err := s.Run(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ProcessService: scan %s: %w", path, err)
	}
	return issues, nil
}

func (p *Processor) status(ctx context.Context, job *models.ScanJob, status string) error {
	if !p.EnableStore || p.Store == nil {
		return nil
	}
	return p.Store.UpdateScanStatus(ctx, job, status)
}
