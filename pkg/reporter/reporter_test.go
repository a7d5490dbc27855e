package reporter

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/pkg/analyzer"
	"github.com/amosWeiskopf/leadsmith/pkg/classifier"
	"github.com/amosWeiskopf/leadsmith/pkg/orchestrator"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatTable, false},
		{"TABLE", FormatTable, false},
		{"json", FormatJSON, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	stats := models.SearchStats{SearchesToday: 3, MaxSearches: 100, Remaining: 97}
	require.NoError(t, New(FormatJSON, &buf).Render(stats))

	var decoded models.SearchStats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, stats, decoded)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	markets := []models.Market{{ID: 1, Code: "ES", Name: "España", Language: "es", Active: true}}
	require.NoError(t, New(FormatTable, &buf).Render(markets))

	out := buf.String()
	assert.Contains(t, out, "Markets")
	assert.Contains(t, out, "España")
	assert.Contains(t, out, "┌")
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	result := &orchestrator.SearchResult{
		Keyword:      "descalcificador",
		MarketCode:   "ES",
		Success:      true,
		TotalResults: 2,
		NewLeads:     1,
		Duplicates:   1,
		Items: []orchestrator.Item{
			{Domain: "acme.es", Class: classifier.Candidate, LeadID: 7, IsNew: true, Title: "Acme"},
		},
	}
	require.NoError(t, New(FormatMarkdown, &buf).Render(result))

	out := buf.String()
	assert.Contains(t, out, "## descalcificador [ES]")
	assert.Contains(t, out, "## Results")
	assert.Contains(t, out, "| acme.es |")
	assert.NotContains(t, out, "┌")
}

func TestRenderQuotaUnlimited(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(FormatTable, &buf).Render(models.SearchStats{SearchesToday: 4, Remaining: -1, IsUnlimited: true}))
	assert.Contains(t, buf.String(), "unlimited")
}

func TestRenderRunStatsErrors(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stats := &orchestrator.RunStats{
		RunID:          "abc",
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Millisecond),
		QuotaExhausted: true,
		Errors:         []string{"daily search limit reached (3/3)"},
	}
	require.NoError(t, New(FormatTable, &buf).Render(stats))

	out := buf.String()
	assert.Contains(t, out, "Search run abc")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "daily search limit reached (3/3)")
}

func TestRenderUnsupported(t *testing.T) {
	err := New(FormatTable, &bytes.Buffer{}).Render(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	assert.NoError(t, New(FormatTable, &bytes.Buffer{}).Render(&analyzer.Analysis{SitesAnalyzed: 1}))
}

func TestRenderRegistryAndHistory(t *testing.T) {
	failure := "HTTP 429"
	searched := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{
			name: "marketplaces",
			value: []models.MarketplaceEntry{
				{Domain: "amazon", Name: "amazon", IsSystem: true},
				{Domain: "marketbox.es", Name: "Marketbox"},
			},
			want: []string{"Marketplaces", "| amazon | amazon | system |", "| marketbox.es | Marketbox | user |"},
		},
		{
			name: "search history",
			value: []models.SearchAudit{
				{KeywordText: "osmosis", ResultsCount: 8, NewLeadsCount: 3, Success: true, SearchedAt: searched},
				{KeywordText: "filtros", ErrorMessage: &failure, SearchedAt: searched},
			},
			want: []string{"Search history", "2026-10-19 08:00:00", "| osmosis | 8 | 3 | ok |", "failed: HTTP 429"},
		},
		{
			name:  "lead counts",
			value: map[models.Tab]int{models.TabNew: 4, models.TabAccepted: 2},
			want:  []string{"Leads by tab", "| new | 4 |", "| accepted | 2 |", "| rejected | 0 |", "| total | 6 |"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, New(FormatMarkdown, &buf).Render(tt.value))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}
