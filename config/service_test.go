package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadService(t *testing.T) {
	t.Setenv("SQS_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123/scans")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_NAME", "hogscan")
	t.Setenv("PG_USER", "scanner")
	t.Setenv("PG_PASSWORD", "p@ss word")
	t.Setenv("HOGSCAN_WORKERS", "4")
	t.Setenv("ENABLE_SQS", "true")
	t.Setenv("ENABLE_STORE", "1")
	t.Setenv("ENABLE_VAULT", "nope")

	cfg := LoadService()
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/scans", cfg.SQSQueueURL)
	assert.Equal(t, "5432", cfg.PGPort)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.EnableSQS)
	assert.True(t, cfg.EnableStore)
	assert.False(t, cfg.EnableVault)
	assert.Equal(t,
		"host=db port=5432 dbname=hogscan user=scanner password='p@ss word' sslmode=disable",
		cfg.PostgresConnString())
}

func TestRepoURL(t *testing.T) {
	cfg := ServiceConfig{GitBaseURL: "https://github.example.com/"}
	assert.Equal(t, "https://github.example.com/org/repo.git", cfg.RepoURL("org/repo"))
	assert.Equal(t, "https://github.example.com/org/repo.git", cfg.RepoURL("org/repo.git"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "plain", quote("plain"))
	assert.Equal(t, "''", quote(""))
	assert.Equal(t, `'it\'s'`, quote("it's"))
}
