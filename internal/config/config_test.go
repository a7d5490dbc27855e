package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Search.DailyLimit)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, time.Second, cfg.Search.Delay)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.MarketDelay)
	assert.Equal(t, 3, cfg.Crawler.MaxPages)
	assert.Equal(t, "/contacto", cfg.Crawler.ContactPaths[0])
	assert.Len(t, cfg.Crawler.PhonePatterns, 4)
	assert.Contains(t, cfg.Classifier.Marketplaces, "amazon")
	assert.Contains(t, cfg.Classifier.ExcludedDomains, "youtube.com")
	assert.Contains(t, cfg.Miner.StopWords["fr"], "avec")
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
search:
  daily_limit: 5
  provider: serpapi
crawler:
  max_pages: 2
classifier:
  marketplaces: [marketbox]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("GOOGLE_API_KEY", "key-from-env")
	t.Setenv("LEADSMITH_SEARCH_DAILY_LIMIT", "7")
	t.Setenv("LEADSMITH_CLASSIFIER_EXCLUDED_DOMAINS", "youtube.com,vimeo.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Search.DailyLimit)
	assert.Equal(t, "serpapi", cfg.Search.Provider)
	assert.Equal(t, 2, cfg.Crawler.MaxPages)
	assert.Equal(t, []string{"marketbox"}, cfg.Classifier.Marketplaces)
	assert.Equal(t, "key-from-env", cfg.APIs.Google.APIKey)
	assert.Equal(t, []string{"youtube.com", "vimeo.com"}, cfg.Classifier.ExcludedDomains)
}

func TestStorageDriverFollowsDatabaseURL(t *testing.T) {
	tests := []struct {
		name       string
		dsn        string
		driver     string
		wantDriver string
	}{
		{name: "default sqlite path", wantDriver: "sqlite"},
		{name: "postgres url", dsn: "postgres://lead:secret@db:5432/leads?sslmode=disable", wantDriver: "postgres"},
		{name: "postgresql url", dsn: "postgresql://db/leads", wantDriver: "postgres"},
		{name: "sqlite file", dsn: "/var/lib/leadsmith/leads.db", wantDriver: "sqlite"},
		{name: "explicit postgres keyword dsn", dsn: "host=db dbname=leads", driver: "postgres", wantDriver: "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("DATABASE_URL", tt.dsn)
			t.Setenv("LEADSMITH_STORAGE_DRIVER", tt.driver)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, cfg.Storage.Driver)
			if tt.dsn != "" {
				assert.Equal(t, tt.dsn, cfg.Storage.DSN)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative daily limit", func(c *Config) { c.Search.DailyLimit = -1 }},
		{"too many results", func(c *Config) { c.Search.MaxResults = 11 }},
		{"zero max pages", func(c *Config) { c.Crawler.MaxPages = 0 }},
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"bad phone pattern", func(c *Config) { c.Crawler.PhonePatterns = []string{"(["} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
