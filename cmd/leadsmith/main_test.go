package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

// newWorkspace points the CLI at a fresh SQLite file in a temporary directory.
func newWorkspace(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATABASE_URL", filepath.Join(dir, "leads.db"))
	t.Setenv("LEADSMITH_LOGGING_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--format", "json"}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	if env != nil {
		env.close()
		env = nil
	}
	return out.String(), err
}

func TestSettingsSetMaxSearches(t *testing.T) {
	newWorkspace(t)

	out, err := execute(t, "settings", "set", "max_searches", "25")
	require.NoError(t, err)
	var stats models.SearchStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 25, stats.MaxSearches)
	assert.Equal(t, 25, stats.Remaining)

	out, err = execute(t, "settings", "get", "max_searches")
	require.NoError(t, err)
	assert.Equal(t, "25\n", out)

	out, err = execute(t, "quota")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 25, stats.MaxSearches)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"settings", "set", "colour", "blue"}},
		{"not a number", []string{"settings", "set", "max_searches", "lots"}},
		{"unset key", []string{"settings", "get", "colour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMarketplaceCommands(t *testing.T) {
	newWorkspace(t)

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	out, err := execute(t, "marketplace", "add", "Marketbox.ES", "Marketbox")
	require.NoError(t, err)
	var entries []models.MarketplaceEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))

	byDomain := map[string]models.MarketplaceEntry{}
	for _, e := range entries {
		byDomain[e.Domain] = e
	}
	require.Contains(t, byDomain, "marketbox.es")
	assert.False(t, byDomain["marketbox.es"].IsSystem)
	assert.Equal(t, "Marketbox", byDomain["marketbox.es"].Name)
	assert.True(t, byDomain["amazon"].IsSystem)

	_, err = execute(t, "marketplace", "add", "marketbox.es")
	require.NoError(t, err)
	out, err = execute(t, "marketplace", "list")
	require.NoError(t, err)
	var again []models.MarketplaceEntry
	require.NoError(t, json.Unmarshal([]byte(out), &again))
	assert.Len(t, again, len(entries))

	_, err = execute(t, "marketplace", "remove", "amazon")
	assert.Error(t, err)
	_, err = execute(t, "marketplace", "remove", "marketbox.es")
	require.NoError(t, err)
}

func TestKeywordAddReturnsExisting(t *testing.T) {
	newWorkspace(t)

	_, err := execute(t, "market", "add", "ES", "España")
	require.NoError(t, err)

	out, err := execute(t, "keyword", "add", "es", "Descalcificador")
	require.NoError(t, err)
	var first []models.Keyword
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	require.Len(t, first, 1)

	out, err = execute(t, "keyword", "add", "es", "descalcificador")
	require.NoError(t, err)
	var second []models.Keyword
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	out, err = execute(t, "keyword", "disable", strconv.FormatInt(first[0].ID, 10))
	require.NoError(t, err)
	var disabled []models.Keyword
	require.NoError(t, json.Unmarshal([]byte(out), &disabled))
	assert.False(t, disabled[0].Active)
}
