// Package scan detects secrets in files and orchestrates a full scan of a
// target directory and its history.
package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"golang.org/x/sync/errgroup"

	"github.com/lockwhz/hogscan/config"
	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/source"
)

// Scanner scans one target and returns its deduplicated issues.
type Scanner interface {
	Run(ctx context.Context, target string) ([]issue.Issue, error)
}

// TruffleScanner combines entropy and pattern rules over the working tree
// and the git history of a target.
type TruffleScanner struct {
	Config *config.Config
	Rules  *rules.RuleSet
	Auth   transport.AuthMethod // used when fetching the origin remote
}

// Scan runs a TruffleScanner once.
func Scan(ctx context.Context, target string, cfg *config.Config, rs *rules.RuleSet) ([]issue.Issue, error) {
	s := &TruffleScanner{Config: cfg, Rules: rs}
	return s.Run(ctx, target)
}

func (s *TruffleScanner) Run(ctx context.Context, target string) ([]issue.Issue, error) {
	start := time.Now()
	defer logger.Trace("Scan", start)

	cfg := s.Config
	if cfg == nil {
		cfg = config.Default()
	}

	selected, err := s.Rules.Select(cfg.Severity, cfg.NoEntropy, cfg.NoPattern)
	if err != nil {
		if errors.Is(err, rules.ErrEmptyRuleSet) {
			logger.Log.Errorf("empty ruleset, skipping %s", target)
		}
		return nil, err
	}

	excludes, err := cfg.Excludes()
	if err != nil {
		return nil, err
	}
	filters := rules.PathFilters(excludes)

	files, err := s.collect(ctx, target, cfg, filters)
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("scanning %d files of %s with %d rules", len(files), target, selected.Len())

	opts := DetectOptions{
		Excludes:       excludes,
		IgnoreNosecret: cfg.IgnoreNosecret,
		Context:        cfg.Context,
	}
	found, err := detectAll(ctx, files, selected, opts, cfg.Processes)
	if err != nil {
		return nil, err
	}
	return issue.Aggregate(found...), nil
}

// collect gathers history files first, then the working tree. A history
// that cannot be read is logged and skipped.
func (s *TruffleScanner) collect(ctx context.Context, target string, cfg *config.Config, filters []string) ([]*source.File, error) {
	var files []*source.File

	if !cfg.NoHistory {
		h := &source.HistoryIterator{
			Path:    target,
			Branch:  cfg.Branch,
			Depth:   cfg.Depth,
			Since:   cfg.Since,
			Exclude: filters,
			Auth:    s.Auth,
		}
		history, err := gather(ctx, h)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logger.Log.Warnf("history of %s not scanned: %v", target, err)
		default:
			logger.Log.Debugf("%d commit transitions diffed in %s", h.Diffs(), target)
			files = append(files, history...)
		}
	}

	if !cfg.NoCurrent {
		current, err := gather(ctx, &source.DirIterator{Root: target, Exclude: filters})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", target, err)
		}
		files = append(files, current...)
	}
	return files, nil
}

func gather(ctx context.Context, src source.Source) ([]*source.File, error) {
	var files []*source.File
	err := src.Walk(ctx, func(f *source.File) error {
		files = append(files, f)
		return nil
	})
	return files, err
}

// detectAll fans Detect out over a bounded pool. Files that cannot be read
// are logged and skipped.
func detectAll(ctx context.Context, files []*source.File, rs *rules.RuleSet, opts DetectOptions, processes int) ([][]issue.Issue, error) {
	if processes <= 0 {
		processes = runtime.NumCPU()
	}

	results := make([][]issue.Issue, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(processes)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := Detect(f, rs, opts)
			if err != nil {
				logger.Log.Warnf("skipping %s: %v", f.Path, err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
