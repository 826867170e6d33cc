// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Store media selectable through SUITEGEN_STORE.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	Store           string
	StoreDir        string
	AIAPIKey        string
	AIModel         string
	AIBaseURL       string
	GitHubAPIURL    string
	TreeConcurrency int
	TreeIgnore      []string
}

// HasAIKey returns true when an AI API key is configured. Used by the
// composition root to decide whether to wire the AI generators; without a key
// generation requests are refused.
func (c *Config) HasAIKey() bool {
	return c.AIAPIKey != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional. Defaults: SUITEGEN_LISTEN_ADDR (127.0.0.1:8080),
// SUITEGEN_DB_PATH (suitegen.db), SUITEGEN_STORE (sqlite), SUITEGEN_STORE_DIR
// (suitegen-data), SUITEGEN_AI_MODEL (gpt-4o-mini), SUITEGEN_TREE_CONCURRENCY (8).
// SUITEGEN_TREE_IGNORE is a comma-separated list of doublestar patterns added to
// the built-in ignore list.
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("SUITEGEN_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "suitegen.db"
	if v, ok := os.LookupEnv("SUITEGEN_DB_PATH"); ok {
		dbPath = v
	}

	store := StoreSQLite
	if v, ok := os.LookupEnv("SUITEGEN_STORE"); ok && v != "" {
		store = strings.ToLower(strings.TrimSpace(v))
		if store != StoreSQLite && store != StoreFile {
			return nil, fmt.Errorf("SUITEGEN_STORE must be %q or %q, got %q", StoreSQLite, StoreFile, v)
		}
	}

	storeDir := "suitegen-data"
	if v, ok := os.LookupEnv("SUITEGEN_STORE_DIR"); ok && v != "" {
		storeDir = v
	}

	aiModel := "gpt-4o-mini"
	if v, ok := os.LookupEnv("SUITEGEN_AI_MODEL"); ok && v != "" {
		aiModel = v
	}

	concurrency := 8
	if v, ok := os.LookupEnv("SUITEGEN_TREE_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SUITEGEN_TREE_CONCURRENCY has invalid value %q: %w", v, err)
		}
		if parsed < 1 {
			return nil, fmt.Errorf("SUITEGEN_TREE_CONCURRENCY must be at least 1, got %d", parsed)
		}
		concurrency = parsed
	}

	var ignore []string
	if v, ok := os.LookupEnv("SUITEGEN_TREE_IGNORE"); ok && v != "" {
		for _, pattern := range strings.Split(v, ",") {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("SUITEGEN_TREE_IGNORE has invalid glob %q", pattern)
			}
			ignore = append(ignore, pattern)
		}
	}
	if ignore == nil {
		ignore = []string{}
	}

	return &Config{
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		Store:           store,
		StoreDir:        storeDir,
		AIAPIKey:        os.Getenv("SUITEGEN_AI_API_KEY"),
		AIModel:         aiModel,
		AIBaseURL:       os.Getenv("SUITEGEN_AI_BASE_URL"),
		GitHubAPIURL:    os.Getenv("SUITEGEN_GITHUB_API_URL"),
		TreeConcurrency: concurrency,
		TreeIgnore:      ignore,
	}, nil
}
