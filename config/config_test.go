package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/hogscan/internal/rules"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, rules.Low, cfg.Severity)
	assert.Equal(t, DefaultDepth, cfg.Depth)
	assert.Equal(t, runtime.NumCPU(), cfg.Processes)

	cfg, err = Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	data := `
severity: medium
ignore_nosecret: true
no_entropy: true
branch: main
depth: 50
since: 9e404e6c59d286645b2465aacaf61108ebc12a3a
no_current: true
context: 2
exclude:
  - message: Vendored code
    paths:
      - vendor
      - node_modules
  - message: Test password
    pattern: letmein
  - message: Entropy in docs
    id: high-entropy
    paths: ["docs"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hogscan.yml"), []byte(data), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, rules.Medium, cfg.Severity)
	assert.True(t, cfg.IgnoreNosecret)
	assert.True(t, cfg.NoEntropy)
	assert.False(t, cfg.NoPattern)
	assert.Equal(t, "main", cfg.Branch)
	assert.Equal(t, 50, cfg.Depth)
	assert.Equal(t, "9e404e6c59d286645b2465aacaf61108ebc12a3a", cfg.Since)
	assert.True(t, cfg.NoCurrent)
	assert.False(t, cfg.NoHistory)
	assert.Equal(t, 2, cfg.Context)

	require.Len(t, cfg.Exclude, 3)
	assert.Equal(t, []string{"vendor", "node_modules"}, cfg.Exclude[0].Paths)
	assert.Equal(t, "letmein", cfg.Exclude[1].Pattern)
	assert.Equal(t, "high-entropy", cfg.Exclude[2].ID)

	excludes, err := cfg.Excludes()
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", "node_modules"}, rules.PathFilters(excludes))
}

func TestLoadExplicitFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("context: 1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Context)
	assert.Equal(t, rules.Low, cfg.Severity)
	assert.Equal(t, DefaultDepth, cfg.Depth)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"bad severity": "severity: critical\n",
		"bad regex":    "exclude:\n  - message: x\n    pattern: \"(x\"\n",
		"negative":     "context: -1\n",
		"invalid yaml": "severity: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestParseExclude(t *testing.T) {
	assert.Equal(t, rules.ExcludeSpec{Message: "p1,p2", Paths: []string{"p1", "p2"}}, ParseExclude("p1,p2"))
	assert.Equal(t, rules.ExcludeSpec{Message: "re:p", Pattern: "re", Paths: []string{"p"}}, ParseExclude("re:p"))
	assert.Equal(t, rules.ExcludeSpec{Message: "letmein:", Pattern: "letmein"}, ParseExclude("letmein:"))
}
