package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/lockwhz/hogscan/config"
	"github.com/lockwhz/hogscan/internal/git"
	"github.com/lockwhz/hogscan/internal/issue"
	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/render"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/scan"
)

// scanOptions holds the scan command flags. Search and source flags
// override the target's configuration file only when given explicitly.
type scanOptions struct {
	zero        bool
	output      string
	configPath  string
	rulesPath   string
	incremental string
	processes   int

	exclude        []string
	severity       string
	ignoreNosecret bool
	noEntropy      bool
	noPattern      bool

	branch    string
	depth     int
	since     string
	noCurrent bool
	noHistory bool

	format  render.Format
	context int
}

var scanOpts = scanOptions{format: render.Text}

var scanCmd = &cobra.Command{
	Use:   "scan [targets...]",
	Short: "Scan directories, repositories or remote URLs for secrets",
	Long: `Scan each target's working tree and git history for secrets.

Targets default to the current directory. http(s) URLs are cloned into a
temporary directory first. Each target is configured by its own .hogscan.yml
unless --config is given.

Examples:
  hogscan scan
  hogscan scan --no-history -s HIGH ./service
  hogscan scan -f json -o report.json https://github.com/org/repo
  hogscan scan -i report.json --since 3f2a1b7 .`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		if err := scanOpts.validate(); err != nil {
			return err
		}
		n, err := runScan(cmd.Context(), &scanOpts, cmd.Flags().Changed, args)
		if err != nil {
			return err
		}
		if n > 0 && !scanOpts.zero {
			return errIssuesFound
		}
		return nil
	},
}

func init() {
	f := scanCmd.Flags()
	f.BoolVarP(&scanOpts.zero, "zero", "z", false, "always exit with zero status code")
	f.StringVarP(&scanOpts.output, "output", "o", "", "path to output file")
	f.StringVarP(&scanOpts.configPath, "config", "c", "", "path to config file")
	f.StringVarP(&scanOpts.rulesPath, "rules", "r", "", "path to rules file (built-in rules by default)")
	f.StringVarP(&scanOpts.incremental, "incremental", "i", "", "path to previous JSON scan, report only new issues")
	f.IntVarP(&scanOpts.processes, "processes", "p", runtime.NumCPU(), "number of files scanned concurrently")

	f.StringSliceVarP(&scanOpts.exclude, "exclude", "e", nil, `exclude matching issues ("paths" or "pattern:paths")`)
	f.StringVarP(&scanOpts.severity, "severity", "s", rules.Low.String(), "minimum severity filter (LOW, MEDIUM, HIGH)")
	f.BoolVar(&scanOpts.ignoreNosecret, "ignore-nosecret", false, "ignore inline 'nosecret' annotations")
	f.BoolVar(&scanOpts.noEntropy, "no-entropy", false, "disable entropy checks")
	f.BoolVar(&scanOpts.noPattern, "no-pattern", false, "disable pattern checks")

	f.StringVar(&scanOpts.branch, "branch", "", "name of the repo branch to scan")
	f.IntVar(&scanOpts.depth, "depth", config.DefaultDepth, "max commits depth per branch")
	f.StringVar(&scanOpts.since, "since", "", "scan history up to the given commit hash")
	f.BoolVar(&scanOpts.noCurrent, "no-current", false, "disable current status check")
	f.BoolVar(&scanOpts.noHistory, "no-history", false, "disable commit history check")

	f.VarP(&scanOpts.format, "format", "f", "output format (text, json)")
	f.IntVar(&scanOpts.context, "context", 0, "number of context lines to include")

	scanCmd.MarkFlagsMutuallyExclusive("no-entropy", "no-pattern")
	scanCmd.MarkFlagsMutuallyExclusive("depth", "since")
	scanCmd.MarkFlagsMutuallyExclusive("no-current", "no-history")

	rootCmd.AddCommand(scanCmd)
}

func (o *scanOptions) validate() error {
	if _, err := rules.ParseSeverity(o.severity); err != nil {
		return err
	}
	if o.depth < 0 || o.context < 0 {
		return fmt.Errorf("--depth and --context must not be negative")
	}
	return nil
}

// apply copies the explicitly set flags onto cfg.
func (o *scanOptions) apply(cfg *config.Config, changed func(string) bool) error {
	if changed("severity") {
		s, err := rules.ParseSeverity(o.severity)
		if err != nil {
			return err
		}
		cfg.Severity = s
	}
	for _, e := range o.exclude {
		cfg.Exclude = append(cfg.Exclude, config.ParseExclude(e))
	}
	if o.ignoreNosecret {
		cfg.IgnoreNosecret = true
	}
	if o.noEntropy {
		cfg.NoEntropy = true
	}
	if o.noPattern {
		cfg.NoPattern = true
	}
	if changed("branch") {
		cfg.Branch = o.branch
	}
	if changed("depth") {
		cfg.Depth = o.depth
	}
	if changed("since") {
		cfg.Since = o.since
	}
	if o.noCurrent {
		cfg.NoCurrent = true
	}
	if o.noHistory {
		cfg.NoHistory = true
	}
	if changed("context") {
		cfg.Context = o.context
	}
	cfg.Processes = o.processes
	if _, err := cfg.Excludes(); err != nil {
		return err
	}
	return nil
}

// runScan scans every target, writes the report and returns the number of
// issues reported.
func runScan(ctx context.Context, o *scanOptions, changed func(string) bool, targets []string) (int, error) {
	rs, err := rules.LoadRules(o.rulesPath)
	if err != nil {
		return 0, err
	}

	var shared *config.Config
	if o.configPath != "" {
		if shared, err = config.Load(o.configPath); err != nil {
			return 0, err
		}
	}

	client := &git.GoGitClient{Vault: gitVault()}

	var found [][]issue.Issue
	for _, target := range targets {
		issues, err := scanTarget(ctx, o, changed, shared, rs, client, target)
		if errors.Is(err, rules.ErrEmptyRuleSet) {
			continue
		}
		if err != nil {
			return 0, err
		}
		found = append(found, issues)
	}
	issues := issue.Aggregate(found...)

	if o.incremental != "" {
		old, err := issue.Load(o.incremental)
		if err != nil {
			return 0, err
		}
		issues = issue.Diff(old, issues, true)
	}

	if err := writeReport(o.output, issues, o.format); err != nil {
		return 0, err
	}
	return len(issues), nil
}

func scanTarget(ctx context.Context, o *scanOptions, changed func(string) bool, shared *config.Config, rs *rules.RuleSet, client *git.GoGitClient, target string) ([]issue.Issue, error) {
	if git.IsRemote(target) {
		dir, err := client.CloneRepo(ctx, target)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				logger.Log.Warnf("remove clone %s: %v", dir, err)
			}
		}()
		target = dir
	}

	cfg := shared
	if cfg == nil {
		var err error
		if cfg, err = config.Load(target); err != nil {
			return nil, err
		}
	} else {
		copied := *cfg
		copied.Exclude = append([]rules.ExcludeSpec(nil), cfg.Exclude...)
		cfg = &copied
	}
	if err := o.apply(cfg, changed); err != nil {
		return nil, err
	}

	auth, err := client.Auth()
	if err != nil {
		return nil, err
	}
	s := &scan.TruffleScanner{Config: cfg, Rules: rs, Auth: auth}
	return s.Run(ctx, target)
}

func writeReport(path string, issues []issue.Issue, format render.Format) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return render.Render(w, issues, format)
}
