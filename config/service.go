package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServiceConfig configures the queue worker. It is read from the
// environment.
type ServiceConfig struct {
	SQSQueueURL string // SQS queue delivering scan jobs.
	PGHost      string
	PGPort      string
	PGName      string
	PGUser      string
	PGPassword  string
	PGSSLMode   string
	RulesPath   string // Rule definitions; empty for the built-in rules.
	GitBaseURL  string // Prefix joined with a job's repository name.
	Workers     int    // Jobs processed concurrently.
	EnableVault bool   // Read git credentials through the vault client.
	EnableClone bool   // Clone repositories; otherwise jobs name local paths.
	EnableScan  bool   // Run the scanner.
	EnableSQS   bool   // Consume jobs from SQS.
	EnableStore bool   // Persist issues to Postgres.
	LogPath     string
}

func LoadService() ServiceConfig {
	parseBool := func(key string) bool {
		val, err := strconv.ParseBool(os.Getenv(key))
		if err != nil {
			return false
		}
		return val
	}
	parseInt := func(key string, def int) int {
		val, err := strconv.Atoi(os.Getenv(key))
		if err != nil || val <= 0 {
			return def
		}
		return val
	}
	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	return ServiceConfig{
		SQSQueueURL: os.Getenv("SQS_QUEUE_URL"),
		PGHost:      os.Getenv("PG_HOST"),
		PGPort:      getenv("PG_PORT", "5432"),
		PGName:      os.Getenv("PG_NAME"),
		PGUser:      os.Getenv("PG_USER"),
		PGPassword:  os.Getenv("PG_PASSWORD"),
		PGSSLMode:   getenv("PG_SSLMODE", "disable"),
		RulesPath:   os.Getenv("HOGSCAN_RULES"),
		GitBaseURL:  getenv("GIT_BASE_URL", "https://github.com/"),
		Workers:     parseInt("HOGSCAN_WORKERS", 10),
		EnableVault: parseBool("ENABLE_VAULT"),
		EnableClone: parseBool("ENABLE_GIT_CLONE"),
		EnableScan:  parseBool("ENABLE_SCAN"),
		EnableSQS:   parseBool("ENABLE_SQS"),
		EnableStore: parseBool("ENABLE_STORE"),
		LogPath:     os.Getenv("HOGSCAN_LOG_PATH"),
	}
}

// PostgresConnString renders the lib/pq keyword/value connection string.
func (c ServiceConfig) PostgresConnString() string {
	// e.g. "host=localhost port=5432 dbname=mydb user=myuser password=mypass sslmode=disable"
	parts := []string{
		"host=" + quote(c.PGHost),
		"port=" + quote(c.PGPort),
		"dbname=" + quote(c.PGName),
		"user=" + quote(c.PGUser),
		"password=" + quote(c.PGPassword),
		"sslmode=" + quote(c.PGSSLMode),
	}
	return strings.Join(parts, " ")
}

// RepoURL returns the clone URL of a repository full name like "org/repo".
func (c ServiceConfig) RepoURL(fullName string) string {
	base := strings.TrimSuffix(c.GitBaseURL, "/")
	return fmt.Sprintf("%s/%s.git", base, strings.TrimSuffix(fullName, ".git"))
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
