package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
	"github.com/amosWeiskopf/leadsmith/internal/storage/storagetest"
	"github.com/amosWeiskopf/leadsmith/pkg/classifier"
	"github.com/amosWeiskopf/leadsmith/pkg/quota"
	"github.com/amosWeiskopf/leadsmith/pkg/search"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   []search.Query
	results []search.Result
	err     error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(_ context.Context, q search.Query) ([]search.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, q)
	if p.err != nil {
		return nil, p.err
	}
	return p.results, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fixture struct {
	store    *storage.Store
	provider *fakeProvider
	tracker  *quota.Tracker
	orch     *Orchestrator
}

func newFixture(t *testing.T, ceiling int) *fixture {
	t.Helper()
	store := storagetest.Open(t)
	provider := &fakeProvider{}
	tracker := quota.NewTracker(store, ceiling)
	cls := classifier.New(store, config.DefaultMarketplaces, config.DefaultExcludedDomains, nil)
	norm := classifier.NewNormalizer(config.DefaultStripPrefixes)

	return &fixture{
		store:    store,
		provider: provider,
		tracker:  tracker,
		orch:     New(store, provider, tracker, norm, cls, Options{ErrorMaxLength: 40}, nil, nil),
	}
}

func (f *fixture) market(t *testing.T, code string, keywords ...string) (*models.Market, []models.Keyword) {
	t.Helper()
	ctx := context.Background()
	m := &models.Market{Name: code, Code: code, Language: "es", Active: true}
	require.NoError(t, f.store.CreateMarket(ctx, m))

	var kws []models.Keyword
	for _, text := range keywords {
		k := models.Keyword{MarketID: m.ID, Text: text, ResultsPerSearch: 8, Active: true}
		require.NoError(t, f.store.CreateKeyword(ctx, &k))
		kws = append(kws, k)
	}
	return m, kws
}

func TestSearchCreatesDeduplicatedLeads(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	market, kws := f.market(t, "ES", "descalcificador")

	f.provider.results = []search.Result{
		{Title: "Acme", URL: "https://www.acme.es/productos", Snippet: "Descalcificadores"},
		{Title: "Acme tienda", URL: "https://shop.acme.es/"},
		{Title: "", URL: "acme.es"},
		{Title: "Vídeo", URL: "https://www.youtube.com/watch?v=1"},
		{Title: "Amazon", URL: "https://www.amazon.es/dp/B01"},
		{Title: "Roto", URL: "http://bad host/"},
	}

	result, err := f.orch.Search(ctx, market, &kws[0])
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 6, result.TotalResults)
	assert.Equal(t, 2, result.NewLeads)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 1, result.Excluded)

	require.Len(t, f.provider.calls, 1)
	assert.Equal(t, search.Query{Text: "descalcificador", MarketCode: "es", Language: "es", MaxResults: 8}, f.provider.calls[0])

	leads, err := f.store.ListLeads(ctx, storage.LeadFilter{MarketID: market.ID})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	tabs := map[string]models.Tab{}
	for _, l := range leads {
		tabs[l.Domain] = l.Tab
	}
	assert.Equal(t, models.TabNew, tabs["acme.es"])
	assert.Equal(t, models.TabMarketplace, tabs["amazon.es"])

	kw, err := f.store.GetKeyword(ctx, kws[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kw.TotalSearches)
	assert.Equal(t, 6, kw.TotalResults)
	assert.NotNil(t, kw.LastSearchAt)

	again, err := f.orch.Search(ctx, market, &kws[0])
	require.NoError(t, err)
	assert.Equal(t, 0, again.NewLeads)
	assert.Equal(t, 4, again.Duplicates)
}

func TestSearchDeniedAtCeiling(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	market, kws := f.market(t, "ES", "osmosis")

	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.InsertAudit(ctx, &models.SearchAudit{KeywordText: "earlier", Success: true}))
	}
	f.provider.results = []search.Result{{Title: "Acme", URL: "https://acme.es"}}

	result, err := f.orch.Search(ctx, market, &kws[0])
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.QuotaExceeded)
	assert.Contains(t, result.Error, "5/5")
	assert.Zero(t, f.provider.callCount())

	leads, err := f.store.ListLeads(ctx, storage.LeadFilter{MarketID: market.ID})
	require.NoError(t, err)
	assert.Empty(t, leads)

	kw, err := f.store.GetKeyword(ctx, kws[0].ID)
	require.NoError(t, err)
	assert.Zero(t, kw.TotalSearches)
	assert.Nil(t, kw.LastSearchAt)

	audits, err := f.store.ListAudits(ctx, market.ID, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.False(t, audits[0].Success)
	assert.Zero(t, audits[0].ResultsCount)
	assert.Zero(t, audits[0].NewLeadsCount)
}

func TestSearchProviderFailure(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	market, kws := f.market(t, "ES", "filtros")
	f.provider.err = errors.New("search provider returned an error status: HTTP 500: upstream exploded badly")

	result, err := f.orch.Search(ctx, market, &kws[0])
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.QuotaExceeded)
	assert.Len(t, []rune(result.Error), 40)
	assert.Equal(t, 10, f.tracker.Remaining(ctx))

	kw, err := f.store.GetKeyword(ctx, kws[0].ID)
	require.NoError(t, err)
	assert.Zero(t, kw.TotalSearches)

	audits, err := f.store.ListAudits(ctx, market.ID, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.NotNil(t, audits[0].ErrorMessage)
	assert.Equal(t, result.Error, *audits[0].ErrorMessage)
}

func TestRunSearchByID(t *testing.T) {
	f := newFixture(t, 0)
	_, kws := f.market(t, "FR", "adoucisseur")
	f.provider.results = []search.Result{{Title: "Eau", URL: "https://eau.fr"}}

	result, err := f.orch.RunSearch(context.Background(), kws[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "fr", result.MarketCode)
	assert.Equal(t, 1, result.NewLeads)

	_, err = f.orch.RunSearch(context.Background(), 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunForAllMarketsStopsAtQuota(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.market(t, "ES", "uno", "dos")
	f.market(t, "PT", "tres", "quatro")
	f.provider.results = []search.Result{{Title: "Acme", URL: "https://acme.es"}}

	stats, err := f.orch.RunForAllMarkets(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.MarketsProcessed)
	assert.Equal(t, 3, stats.KeywordsSearched)
	assert.Equal(t, 1, stats.KeywordsSkipped)
	assert.True(t, stats.QuotaExhausted)
	assert.Equal(t, 2, stats.NewLeads)
	assert.Len(t, stats.Errors, 1)
	assert.Equal(t, 3, f.provider.callCount())
	assert.Equal(t, 0, f.tracker.Remaining(ctx))
}

func TestRunForMarketContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	market, _ := f.market(t, "ES", "uno", "dos")
	f.provider.err = errors.New("timeout")
	f.orch.opts.MarketDelay = time.Millisecond

	stats, err := f.orch.RunForMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.KeywordsSearched)
	assert.Len(t, stats.Errors, 2)
	assert.False(t, stats.QuotaExhausted)
}

func TestRunForAllMarketsParallel(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	for _, code := range []string{"ES", "FR", "PT"} {
		f.market(t, code, code+"-a", code+"-b")
	}
	f.orch.opts.ParallelMarkets = 3
	f.provider.results = []search.Result{{Title: "Acme", URL: "https://acme.es"}}

	stats, err := f.orch.RunForAllMarkets(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, f.provider.callCount())
	assert.Equal(t, 4, stats.KeywordsSearched)
	assert.Equal(t, 2, stats.KeywordsSkipped)
	assert.True(t, stats.QuotaExhausted)
}

func TestBatchRefreshesUsageFromOtherProcesses(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	f.market(t, "ES", "osmosis")
	f.provider.results = []search.Result{{Title: "Acme", URL: "https://acme.es"}}

	first, err := f.orch.RunForAllMarkets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.KeywordsSearched)
	assert.Equal(t, 4, f.tracker.Remaining(ctx))

	// Another process spends the rest of the day's budget.
	for i := 0; i < 4; i++ {
		require.NoError(t, f.store.InsertAudit(ctx, &models.SearchAudit{KeywordText: "elsewhere", Success: true}))
	}

	second, err := f.orch.RunForAllMarkets(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.KeywordsSearched)
	assert.Equal(t, 1, second.KeywordsSkipped)
	assert.True(t, second.QuotaExhausted)
	assert.Equal(t, 1, f.provider.callCount())
	assert.ErrorIs(t, f.tracker.Check(ctx), quota.ErrQuotaExceeded)
}

// brokenQuota fails every usage read.
type brokenQuota struct {
	err error
}

func (q brokenQuota) Check(context.Context) error { return q.err }
func (q brokenQuota) Reserve(context.Context) error { return q.err }
func (q brokenQuota) Release(context.Context) {}
func (q brokenQuota) Remaining(context.Context) int { return 0 }
func (q brokenQuota) Refresh(context.Context) error { return nil }

func TestSearchQuotaStorageErrorIsAFailure(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	market, kws := f.market(t, "ES", "osmosis")
	f.orch.quota = brokenQuota{err: errors.New("database is locked")}

	result, err := f.orch.Search(ctx, market, &kws[0])
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.QuotaExceeded)
	assert.Contains(t, result.Error, "database is locked")
	assert.Zero(t, f.provider.callCount())

	stats, err := f.orch.RunForMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.False(t, stats.QuotaExhausted)
	assert.Zero(t, stats.KeywordsSkipped)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "quota check")
}

func TestSearchCapsRequestedResults(t *testing.T) {
	tests := []struct {
		name       string
		maxResults int
		perSearch  int
		want       int
	}{
		{name: "keyword below cap", maxResults: 10, perSearch: 8, want: 8},
		{name: "configured cap", maxResults: 5, perSearch: 8, want: 5},
		{name: "provider cap", maxResults: 50, perSearch: 30, want: search.MaxResults},
		{name: "unset cap", maxResults: 0, perSearch: 30, want: search.MaxResults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.orch = New(f.store, f.provider, f.tracker, f.orch.normalizer, f.orch.classifier,
				Options{MaxResults: tt.maxResults}, nil, nil)
			market, kws := f.market(t, "ES", "osmosis")
			kws[0].ResultsPerSearch = tt.perSearch

			_, err := f.orch.Search(context.Background(), market, &kws[0])
			require.NoError(t, err)
			require.Len(t, f.provider.calls, 1)
			assert.Equal(t, tt.want, f.provider.calls[0].MaxResults)
		})
	}
}
