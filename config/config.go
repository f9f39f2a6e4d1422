// Package config loads the scan configuration from .hogscan.yml files and
// the worker configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/source"
)

const DefaultDepth = 10000

// Config is the resolved configuration of one scan. Zero values of the
// source selectors mean "not set".
type Config struct {
	// search
	Exclude        []rules.ExcludeSpec
	Severity       rules.Severity
	IgnoreNosecret bool
	NoEntropy      bool
	NoPattern      bool

	// source
	Branch    string
	Depth     int
	Since     string
	NoCurrent bool
	NoHistory bool

	// output
	Context   int
	Processes int
}

// fileConfig mirrors the on-disk format.
type fileConfig struct {
	Exclude        []rules.ExcludeSpec `mapstructure:"exclude"`
	Severity       string              `mapstructure:"severity"`
	IgnoreNosecret bool                `mapstructure:"ignore_nosecret"`
	NoEntropy      bool                `mapstructure:"no_entropy"`
	NoPattern      bool                `mapstructure:"no_pattern"`
	Branch         string              `mapstructure:"branch"`
	Depth          int                 `mapstructure:"depth"`
	Since          string              `mapstructure:"since"`
	NoCurrent      bool                `mapstructure:"no_current"`
	NoHistory      bool                `mapstructure:"no_history"`
	Context        int                 `mapstructure:"context"`
}

func Default() *Config {
	return &Config{
		Severity:  rules.Low,
		Depth:     DefaultDepth,
		Processes: runtime.NumCPU(),
	}
}

// Load reads the configuration at path. A directory is searched for
// .hogscan.yml; when no file exists the defaults are returned.
func Load(path string) (*Config, error) {
	file, err := locate(path)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	v.SetDefault("severity", rules.Low.String())
	v.SetDefault("depth", DefaultDepth)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", file, err)
	}

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", file, err)
	}

	cfg, err := raw.resolve()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", file, err)
	}
	return cfg, nil
}

func locate(path string) (string, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat config %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	candidate := filepath.Join(path, source.ConfigFile)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, nil
	}
	return "", nil
}

func (f fileConfig) resolve() (*Config, error) {
	severity, err := rules.ParseSeverity(f.Severity)
	if err != nil {
		return nil, err
	}
	if f.Depth < 0 || f.Context < 0 {
		return nil, fmt.Errorf("depth and context must not be negative")
	}

	cfg := Default()
	cfg.Exclude = f.Exclude
	cfg.Severity = severity
	cfg.IgnoreNosecret = f.IgnoreNosecret
	cfg.NoEntropy = f.NoEntropy
	cfg.NoPattern = f.NoPattern
	cfg.Branch = f.Branch
	cfg.Depth = f.Depth
	cfg.Since = f.Since
	cfg.NoCurrent = f.NoCurrent
	cfg.NoHistory = f.NoHistory
	cfg.Context = f.Context

	if _, err := cfg.Excludes(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Excludes compiles the exclude list.
func (c *Config) Excludes() ([]*rules.Exclude, error) {
	return rules.CompileExcludes(c.Exclude)
}

// ParseExclude converts a command-line exclude of the form
// "paths" or "pattern:paths" (paths comma separated).
func ParseExclude(s string) rules.ExcludeSpec {
	spec := rules.ExcludeSpec{Message: s}
	paths := s
	if pattern, rest, ok := strings.Cut(s, ":"); ok {
		spec.Pattern = pattern
		paths = rest
	}
	for _, p := range strings.Split(paths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			spec.Paths = append(spec.Paths, p)
		}
	}
	return spec
}
