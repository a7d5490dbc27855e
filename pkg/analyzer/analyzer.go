// Package analyzer mines keyword suggestions from the websites of a market's
// accepted leads.
package analyzer

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/metrics"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
	"github.com/amosWeiskopf/leadsmith/pkg/fetcher"
	"github.com/amosWeiskopf/leadsmith/pkg/utils"
)

// Store is the persistence the miner needs
type Store interface {
	ListLeads(ctx context.Context, f storage.LeadFilter) ([]models.Lead, error)
	ActiveKeywordTexts(ctx context.Context, marketID int64) (map[string]bool, error)
	UpsertSuggestion(ctx context.Context, sg *models.KeywordSuggestion) (bool, error)
}

// Config holds analyzer configuration
type Config struct {
	StopWords       map[string][]string
	DefaultLanguage string
	MinTokenLength  int
	MinFrequency    int
	MinSites        int
	MaxTermsPerSite int
	BatchSize       int
	Timeout         time.Duration
	SiteDelay       time.Duration
}

// ConfigFrom builds the analyzer configuration from the miner and crawler
// sections.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		StopWords:       cfg.Miner.StopWords,
		DefaultLanguage: cfg.Miner.DefaultLanguage,
		MinTokenLength:  cfg.Miner.MinTokenLength,
		MinFrequency:    cfg.Miner.MinFrequency,
		MinSites:        cfg.Miner.MinSites,
		MaxTermsPerSite: cfg.Miner.MaxTermsPerSite,
		BatchSize:       cfg.Miner.BatchSize,
		Timeout:         cfg.Miner.Timeout,
		SiteDelay:       cfg.Crawler.SiteDelay,
	}
}

// Analysis is the outcome of mining one market.
type Analysis struct {
	SitesAnalyzed    int `json:"sites_analyzed"`
	KeywordsFound    int `json:"keywords_found"`
	SuggestionsAdded int `json:"suggestions_added"`
}

// Analyzer turns site metadata into keyword suggestions
type Analyzer struct {
	config  Config
	fetch   fetcher.Getter
	store   Store
	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates a new Analyzer instance
func New(cfg Config, fetch fetcher.Getter, store Store, log logger.Logger, m *metrics.Metrics) *Analyzer {
	if cfg.StopWords == nil {
		cfg.StopWords = config.DefaultStopWords
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "es"
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 4
	}
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = 3
	}
	if cfg.MinSites <= 0 {
		cfg.MinSites = 2
	}
	if cfg.MaxTermsPerSite <= 0 {
		cfg.MaxTermsPerSite = 20
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Analyzer{config: cfg, fetch: fetch, store: store, log: log, metrics: m}
}

// AnalyzeSite fetches one page and returns its keyword material, with content
// terms counted using the stop words of lang.
func (a *Analyzer) AnalyzeSite(ctx context.Context, pageURL, lang string) (*models.SiteKeywords, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	page, err := a.fetch.Get(ctx, pageURL)
	if err != nil {
		a.metrics.RecordPage(false)
		return nil, err
	}
	a.metrics.RecordPage(true)

	site, err := parseSite(page.Body, pageURL)
	if err != nil {
		return nil, err
	}
	if u, err := url.Parse(pageURL); err == nil {
		site.Domain = u.Hostname()
	}

	stop := utils.NewStopWords(a.config.StopWords, lang, a.config.DefaultLanguage)
	tokens := utils.Tokenize(siteText(site), stop, a.config.MinTokenLength)
	site.Terms = make(map[string]int)
	for _, tc := range utils.CountTerms(tokens, a.config.MaxTermsPerSite) {
		site.Terms[tc.Term] = tc.Count
	}
	return site, nil
}

// candidate accumulates one term across sites.
type candidate struct {
	source    models.SuggestionSource
	frequency int
	sites     map[string]bool
}

// AnalyzeMarket mines the given leads' websites and stores a suggestion for
// every term seen at least MinFrequency times or on at least MinSites sites,
// unless the market already has it as an active keyword. Sites that cannot be
// fetched are skipped.
func (a *Analyzer) AnalyzeMarket(ctx context.Context, market *models.Market, leads []models.Lead) (*Analysis, error) {
	existing, err := a.store.ActiveKeywordTexts(ctx, market.ID)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if a.config.SiteDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(a.config.SiteDelay), 1)
	}

	terms := make(map[string]*candidate)
	add := func(term string, source models.SuggestionSource, n int, domain string) {
		c, ok := terms[term]
		if !ok {
			c = &candidate{source: source, sites: make(map[string]bool)}
			terms[term] = c
		}
		c.frequency += n
		c.sites[domain] = true
	}

	analysis := &Analysis{}
	for _, lead := range leads {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		target := lead.URL
		if target == "" {
			target = "https://" + lead.Domain + "/"
		}
		site, err := a.AnalyzeSite(ctx, target, market.Language)
		if err != nil {
			a.log.Debug("Site analysis failed",
				logger.String("domain", lead.Domain),
				logger.Error(err),
			)
			continue
		}
		analysis.SitesAnalyzed++

		for _, kw := range site.MetaKeywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if len([]rune(kw)) >= a.config.MinTokenLength {
				add(kw, models.SourceMeta, 1, lead.Domain)
			}
		}
		for term, n := range site.Terms {
			add(term, models.SourceContent, n, lead.Domain)
		}
	}
	analysis.KeywordsFound = len(terms)

	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, term := range keys {
		c := terms[term]
		if c.frequency < a.config.MinFrequency && len(c.sites) < a.config.MinSites {
			continue
		}
		if existing[term] {
			continue
		}
		created, err := a.store.UpsertSuggestion(ctx, &models.KeywordSuggestion{
			MarketID:      market.ID,
			Text:          term,
			Source:        c.source,
			Frequency:     c.frequency,
			WebsitesCount: len(c.sites),
		})
		if err != nil {
			return analysis, fmt.Errorf("save suggestion %q: %w", term, err)
		}
		if created {
			analysis.SuggestionsAdded++
		}
	}
	a.metrics.RecordSuggestions(analysis.SuggestionsAdded)

	a.log.Info("Keyword analysis finished",
		logger.String("market", market.Code),
		logger.Int("leads", len(leads)),
		logger.Int("sites", analysis.SitesAnalyzed),
		logger.Int("keywords_found", analysis.KeywordsFound),
		logger.Int("suggestions_added", analysis.SuggestionsAdded),
	)
	return analysis, nil
}

// AnalyzeAccepted mines the limit most recently found accepted leads of the
// market. A limit of 0 uses BatchSize.
func (a *Analyzer) AnalyzeAccepted(ctx context.Context, market *models.Market, limit int) (*Analysis, error) {
	if limit <= 0 {
		limit = a.config.BatchSize
	}
	leads, err := a.store.ListLeads(ctx, storage.LeadFilter{
		MarketID: market.ID,
		Tab:      models.TabAccepted,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	if len(leads) == 0 {
		return &Analysis{}, nil
	}
	return a.AnalyzeMarket(ctx, market, leads)
}
