// Package orchestrator runs keyword searches under the daily quota and turns
// their results into deduplicated leads.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/metrics"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/pkg/classifier"
	"github.com/amosWeiskopf/leadsmith/pkg/quota"
	"github.com/amosWeiskopf/leadsmith/pkg/search"
	"github.com/amosWeiskopf/leadsmith/pkg/utils"
)

const maxLeadName = 500

// Store is the persistence the orchestrator needs.
type Store interface {
	GetKeyword(ctx context.Context, id int64) (*models.Keyword, error)
	GetMarket(ctx context.Context, id int64) (*models.Market, error)
	ListMarkets(ctx context.Context, activeOnly bool) ([]models.Market, error)
	ListKeywords(ctx context.Context, marketID int64, activeOnly bool) ([]models.Keyword, error)
	CreateLeadIfAbsent(ctx context.Context, l *models.Lead) (bool, error)
	RecordSearch(ctx context.Context, keywordID int64, a *models.SearchAudit) error
	InsertAudit(ctx context.Context, a *models.SearchAudit) error
}

// Quota gates provider calls. Check and Reserve return an error wrapping
// quota.ErrQuotaExceeded at the ceiling.
type Quota interface {
	Check(ctx context.Context) error
	Reserve(ctx context.Context) error
	Release(ctx context.Context)
	Remaining(ctx context.Context) int
	Refresh(ctx context.Context) error
}

// Options tunes batch runs.
type Options struct {
	// Delay separates searches in RunForAllMarkets.
	Delay time.Duration
	// MarketDelay separates searches in RunForMarket.
	MarketDelay time.Duration
	// ParallelMarkets is the number of markets searched at once.
	ParallelMarkets int
	// ErrorMaxLength truncates persisted error messages.
	ErrorMaxLength int
	// MaxResults caps the results requested per search.
	MaxResults int
}

// OptionsFromConfig builds orchestrator options from the search section.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		Delay:           cfg.Delay,
		MarketDelay:     cfg.MarketDelay,
		ParallelMarkets: cfg.ParallelMarkets,
		ErrorMaxLength:  cfg.ErrorMaxLength,
		MaxResults:      cfg.MaxResults,
	}
}

// Item is the outcome of one search result.
type Item struct {
	URL    string           `json:"url"`
	Domain string           `json:"domain"`
	Title  string           `json:"title"`
	Class  classifier.Class `json:"class"`
	LeadID int64            `json:"lead_id,omitempty"`
	IsNew  bool             `json:"is_new"`
}

// SearchResult is the outcome of one keyword search.
type SearchResult struct {
	KeywordID     int64  `json:"keyword_id"`
	Keyword       string `json:"keyword"`
	MarketCode    string `json:"market_code"`
	Success       bool   `json:"success"`
	QuotaExceeded bool   `json:"quota_exceeded,omitempty"`
	TotalResults  int    `json:"total_results"`
	NewLeads      int    `json:"new_leads"`
	Duplicates    int    `json:"duplicates"`
	Excluded      int    `json:"excluded"`
	Items         []Item `json:"items"`
	Error         string `json:"error,omitempty"`
}

// Orchestrator wires the search pipeline together.
type Orchestrator struct {
	store      Store
	provider   search.Provider
	quota      Quota
	normalizer *classifier.Normalizer
	classifier *classifier.Classifier
	opts       Options
	log        logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates an Orchestrator.
func New(
	store Store,
	provider search.Provider,
	q Quota,
	normalizer *classifier.Normalizer,
	cls *classifier.Classifier,
	opts Options,
	log logger.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if opts.ParallelMarkets <= 0 {
		opts.ParallelMarkets = 1
	}
	if opts.ErrorMaxLength <= 0 {
		opts.ErrorMaxLength = 500
	}
	if opts.MaxResults <= 0 || opts.MaxResults > search.MaxResults {
		opts.MaxResults = search.MaxResults
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		store:      store,
		provider:   provider,
		quota:      q,
		normalizer: normalizer,
		classifier: cls,
		opts:       opts,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// RunSearch searches one keyword by id.
func (o *Orchestrator) RunSearch(ctx context.Context, keywordID int64) (*SearchResult, error) {
	kw, err := o.store.GetKeyword(ctx, keywordID)
	if err != nil {
		return nil, err
	}
	market, err := o.store.GetMarket(ctx, kw.MarketID)
	if err != nil {
		return nil, err
	}
	return o.Search(ctx, market, kw)
}

// Search runs a single keyword of market against the provider. A denied or
// failed call writes an audit record with zero counts and leaves the keyword
// counters untouched. The returned error is reserved for persistence failures;
// provider problems are reported in SearchResult.Error.
func (o *Orchestrator) Search(ctx context.Context, market *models.Market, kw *models.Keyword) (*SearchResult, error) {
	result := &SearchResult{
		KeywordID:  kw.ID,
		Keyword:    kw.Text,
		MarketCode: market.Code,
		Items:      []Item{},
	}
	log := o.log.With(logger.String("market", market.Code), logger.String("keyword", kw.Text))

	if err := o.quota.Check(ctx); err != nil {
		return o.refuse(ctx, log, kw, result, err)
	}
	if err := o.quota.Reserve(ctx); err != nil {
		return o.refuse(ctx, log, kw, result, err)
	}

	start := o.now()
	results, err := o.provider.Search(ctx, search.Query{
		Text:       kw.Text,
		MarketCode: market.Code,
		Language:   market.Language,
		MaxResults: min(kw.ResultsPerSearch, o.opts.MaxResults),
	})
	elapsed := o.now().Sub(start)
	if err != nil {
		o.quota.Release(ctx)
		log.Warn("Search failed", logger.Error(err), logger.Duration("duration", elapsed))
		return o.fail(ctx, kw, result, err, elapsed)
	}

	result.TotalResults = len(results)
	for _, r := range results {
		o.collect(ctx, log, market, kw, r, result)
	}

	if err := o.store.RecordSearch(ctx, kw.ID, &models.SearchAudit{
		MarketID:      &kw.MarketID,
		KeywordID:     &kw.ID,
		KeywordText:   kw.Text,
		ResultsCount:  result.TotalResults,
		NewLeadsCount: result.NewLeads,
		Success:       true,
	}); err != nil {
		return result, fmt.Errorf("record search %q: %w", kw.Text, err)
	}
	result.Success = true

	o.metrics.RecordSearch("success", elapsed, result.TotalResults)
	o.metrics.SetQuotaRemaining(o.quota.Remaining(ctx))
	log.Info("Search completed",
		logger.Int("results", result.TotalResults),
		logger.Int("new_leads", result.NewLeads),
		logger.Int("duplicates", result.Duplicates),
		logger.Duration("duration", elapsed),
	)
	return result, nil
}

// collect turns one provider result into a lead unless it is unusable,
// excluded or already known for the market.
func (o *Orchestrator) collect(ctx context.Context, log logger.Logger, market *models.Market, kw *models.Keyword, r search.Result, result *SearchResult) {
	domain, ok := o.normalizer.Normalize(r.URL)
	if !ok {
		log.Debug("Skipped unparsable result", logger.String("url", r.URL))
		return
	}

	class := o.classifier.Classify(ctx, domain)
	if class == classifier.Excluded {
		result.Excluded++
		log.Debug("Skipped excluded domain", logger.String("domain", domain))
		return
	}

	name := utils.TruncateText(r.Title, maxLeadName)
	if name == "" {
		name = domain
	}
	lead := &models.Lead{
		MarketID:  market.ID,
		KeywordID: &kw.ID,
		Name:      name,
		URL:       r.URL,
		Domain:    domain,
		Snippet:   r.Snippet,
		Tab:       class.Tab(),
	}
	created, err := o.store.CreateLeadIfAbsent(ctx, lead)
	if err != nil {
		log.Warn("Failed to store lead", logger.String("domain", domain), logger.Error(err))
		return
	}

	result.Items = append(result.Items, Item{
		URL:    r.URL,
		Domain: domain,
		Title:  r.Title,
		Class:  class,
		LeadID: lead.ID,
		IsNew:  created,
	})
	if !created {
		result.Duplicates++
		return
	}
	result.NewLeads++
	o.metrics.RecordLead(string(lead.Tab))
}

// refuse handles a quota gate error: the ceiling is a denial, anything else a
// failed search.
func (o *Orchestrator) refuse(ctx context.Context, log logger.Logger, kw *models.Keyword, result *SearchResult, err error) (*SearchResult, error) {
	if errors.Is(err, quota.ErrQuotaExceeded) {
		return o.deny(ctx, kw, result, err.Error())
	}
	log.Error("Quota check failed", logger.Error(err))
	return o.fail(ctx, kw, result, err, 0)
}

func (o *Orchestrator) deny(ctx context.Context, kw *models.Keyword, result *SearchResult, reason string) (*SearchResult, error) {
	result.QuotaExceeded = true
	result.Error = reason
	o.metrics.RecordSearch("denied", 0, 0)
	o.log.Warn("Search denied", logger.String("keyword", kw.Text), logger.String("reason", reason))
	return result, o.audit(ctx, kw, reason)
}

func (o *Orchestrator) fail(ctx context.Context, kw *models.Keyword, result *SearchResult, err error, elapsed time.Duration) (*SearchResult, error) {
	result.Error = utils.TruncateText(err.Error(), o.opts.ErrorMaxLength)
	o.metrics.RecordSearch("failed", elapsed, 0)
	return result, o.audit(ctx, kw, result.Error)
}

// audit writes a zero-count failure record.
func (o *Orchestrator) audit(ctx context.Context, kw *models.Keyword, message string) error {
	msg := utils.TruncateText(message, o.opts.ErrorMaxLength)
	err := o.store.InsertAudit(ctx, &models.SearchAudit{
		MarketID:     &kw.MarketID,
		KeywordID:    &kw.ID,
		KeywordText:  kw.Text,
		Success:      false,
		ErrorMessage: &msg,
	})
	if err != nil {
		return fmt.Errorf("record failed search %q: %w", kw.Text, err)
	}
	return nil
}
