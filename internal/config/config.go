// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken    string
	DBPath         string
	LockDir        string
	IssuePageLimit int
	PushgatewayURL string
	LogLevel       slog.Level
}

// HasGitHubToken returns true when a GitHub token is configured. Without one
// the GitHub client issues unauthenticated requests with a lower rate limit.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// LoadDotEnv sets variables from the given .env files without overriding
// variables already present in the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: ISITMAINTAINED_GITHUB_TOKEN (unauthenticated if absent),
// ISITMAINTAINED_DB_PATH (isitmaintained.db), ISITMAINTAINED_LOCK_DIR (os.TempDir()),
// ISITMAINTAINED_ISSUE_PAGE_LIMIT (10), ISITMAINTAINED_PUSHGATEWAY_URL (no push),
// ISITMAINTAINED_LOG_LEVEL (info).
func Load() (*Config, error) {
	token := strings.TrimSpace(os.Getenv("ISITMAINTAINED_GITHUB_TOKEN"))

	dbPath := "isitmaintained.db"
	if v, ok := os.LookupEnv("ISITMAINTAINED_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	lockDir := os.TempDir()
	if v, ok := os.LookupEnv("ISITMAINTAINED_LOCK_DIR"); ok && v != "" {
		lockDir = v
	}

	pageLimit := 10
	if v, ok := os.LookupEnv("ISITMAINTAINED_ISSUE_PAGE_LIMIT"); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("ISITMAINTAINED_ISSUE_PAGE_LIMIT must be a positive integer, got %q", v)
		}
		pageLimit = parsed
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("ISITMAINTAINED_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("ISITMAINTAINED_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		GitHubToken:    token,
		DBPath:         dbPath,
		LockDir:        lockDir,
		IssuePageLimit: pageLimit,
		PushgatewayURL: os.Getenv("ISITMAINTAINED_PUSHGATEWAY_URL"),
		LogLevel:       logLevel,
	}, nil
}
