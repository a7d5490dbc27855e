package crawler

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
)

// DefaultEnrichLimit bounds a market enrichment run.
const DefaultEnrichLimit = 50

// EnrichStats summarises a batch enrichment run.
type EnrichStats struct {
	Processed int      `json:"processed"`
	WithEmail int      `json:"with_email"`
	WithPhone int      `json:"with_phone"`
	WithTaxID int      `json:"with_tax_id"`
	Errors    []string `json:"errors"`
}

// Enricher writes crawl results back onto leads.
type Enricher struct {
	crawler ContactExtractor
	store   LeadStore
	opts    Options
	log     logger.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(c ContactExtractor, store LeadStore, opts Options, log logger.Logger) *Enricher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Enricher{crawler: c, store: store, opts: opts, log: log}
}

// EnrichLead crawls the lead's site and fills its empty contact fields. The
// attempt is recorded even when nothing was found.
func (e *Enricher) EnrichLead(ctx context.Context, id int64) (*models.ContactResult, error) {
	lead, err := e.store.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.enrich(ctx, lead)
}

func (e *Enricher) enrich(ctx context.Context, lead *models.Lead) (*models.ContactResult, error) {
	target := lead.URL
	if target == "" {
		target = lead.Domain
	}
	result := e.crawler.ExtractContact(ctx, target, e.opts.MaxPages)

	update := models.ContactUpdate{Email: result.Email, Phone: result.Phone, TaxID: result.TaxID}
	if err := e.store.ApplyLeadContact(ctx, lead.ID, update); err != nil {
		return result, fmt.Errorf("save contact for lead %d: %w", lead.ID, err)
	}
	return result, nil
}

// EnrichMarket crawls every accepted lead of the market whose extraction has
// not run yet, newest first, pausing SiteDelay between sites. A failing lead
// is recorded in the stats and does not stop the run.
func (e *Enricher) EnrichMarket(ctx context.Context, marketID int64, limit int) (*EnrichStats, error) {
	if limit <= 0 {
		limit = DefaultEnrichLimit
	}
	leads, err := e.store.ListLeads(ctx, storage.LeadFilter{
		MarketID:       marketID,
		Tab:            models.TabAccepted,
		PendingContact: true,
		Limit:          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if e.opts.SiteDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(e.opts.SiteDelay), 1)
	}

	stats := &EnrichStats{Errors: []string{}}
	for i := range leads {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		lead := &leads[i]

		result, err := e.enrich(ctx, lead)
		stats.Processed++
		if err != nil {
			e.log.Warn("Contact enrichment failed",
				logger.Int64("lead_id", lead.ID),
				logger.String("domain", lead.Domain),
				logger.Error(err),
			)
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", lead.Domain, err))
			continue
		}
		if !result.Success && result.Error != "" {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %s", lead.Domain, result.Error))
		}
		if result.Email != "" {
			stats.WithEmail++
		}
		if result.Phone != "" {
			stats.WithPhone++
		}
		if result.TaxID != "" {
			stats.WithTaxID++
		}
	}

	e.log.Info("Market enrichment finished",
		logger.Int64("market_id", marketID),
		logger.Int("processed", stats.Processed),
		logger.Int("with_email", stats.WithEmail),
		logger.Int("errors", len(stats.Errors)),
	)
	return stats, nil
}
