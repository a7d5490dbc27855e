package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/pkg/quota"
)

// RunStats aggregates a batch of searches.
type RunStats struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	MarketsProcessed int       `json:"markets_processed"`
	KeywordsSearched int       `json:"keywords_searched"`
	KeywordsSkipped  int       `json:"keywords_skipped"`
	TotalResults     int       `json:"total_results"`
	NewLeads         int       `json:"new_leads"`
	QuotaExhausted   bool      `json:"quota_exhausted"`
	Errors           []string  `json:"errors"`

	mu sync.Mutex
}

func newRunStats(now time.Time) *RunStats {
	return &RunStats{RunID: uuid.NewString(), StartedAt: now, Errors: []string{}}
}

func (s *RunStats) add(r *SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.KeywordsSearched++
	s.TotalResults += r.TotalResults
	s.NewLeads += r.NewLeads
	if r.Error != "" && !r.QuotaExceeded {
		s.Errors = append(s.Errors, fmt.Sprintf("%s/%s: %s", r.MarketCode, r.Keyword, r.Error))
	}
}

func (s *RunStats) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
}

// exhaust records that the quota ran out with skipped keywords left over.
// The reason is reported once per run.
func (s *RunStats) exhaust(skipped int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.KeywordsSkipped += skipped
	if !s.QuotaExhausted {
		s.Errors = append(s.Errors, reason)
	}
	s.QuotaExhausted = true
}

func (s *RunStats) market() {
	s.mu.Lock()
	s.MarketsProcessed++
	s.mu.Unlock()
}

// RunForMarket searches every active keyword of one market, spaced by
// MarketDelay. Once the quota is exhausted the remaining keywords are counted
// as skipped.
func (o *Orchestrator) RunForMarket(ctx context.Context, marketID int64) (*RunStats, error) {
	market, err := o.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if err := o.prepare(ctx); err != nil {
		return nil, err
	}

	stats := newRunStats(o.now().UTC())
	o.runMarket(ctx, market, o.opts.MarketDelay, stats)
	return o.finish(stats), nil
}

// RunForAllMarkets searches the active keywords of every active market, up to
// ParallelMarkets markets at a time. Each market's searches are spaced by
// Delay. A failing keyword never aborts the run.
func (o *Orchestrator) RunForAllMarkets(ctx context.Context) (*RunStats, error) {
	markets, err := o.store.ListMarkets(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	if err := o.prepare(ctx); err != nil {
		return nil, err
	}

	stats := newRunStats(o.now().UTC())
	o.log.Info("Search run started",
		logger.String("run_id", stats.RunID),
		logger.Int("markets", len(markets)),
		logger.Int("parallel", o.opts.ParallelMarkets),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.ParallelMarkets)
	for i := range markets {
		market := &markets[i]
		g.Go(func() error {
			o.runMarket(gctx, market, o.opts.Delay, stats)
			return nil
		})
	}
	_ = g.Wait()

	return o.finish(stats), nil
}

func (o *Orchestrator) runMarket(ctx context.Context, market *models.Market, delay time.Duration, stats *RunStats) {
	log := o.log.With(logger.String("run_id", stats.RunID), logger.String("market", market.Code))

	keywords, err := o.store.ListKeywords(ctx, market.ID, true)
	if err != nil {
		log.Error("Failed to list keywords", logger.Error(err))
		stats.fail(fmt.Sprintf("%s: list keywords: %v", market.Code, err))
		return
	}
	stats.market()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	for i := range keywords {
		if err := o.quota.Check(ctx); err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				log.Warn("Quota exhausted", logger.String("reason", err.Error()), logger.Int("skipped", len(keywords)-i))
				stats.exhaust(len(keywords)-i, err.Error())
				return
			}
			log.Error("Quota check failed", logger.Error(err))
			stats.fail(fmt.Sprintf("%s: quota check: %v", market.Code, err))
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			stats.fail(fmt.Sprintf("%s: %v", market.Code, err))
			return
		}

		result, err := o.Search(ctx, market, &keywords[i])
		if err != nil {
			log.Error("Search bookkeeping failed", logger.String("keyword", keywords[i].Text), logger.Error(err))
			stats.fail(fmt.Sprintf("%s/%s: %v", market.Code, keywords[i].Text, err))
			continue
		}
		if result.QuotaExceeded {
			stats.exhaust(len(keywords)-i, result.Error)
			return
		}
		stats.add(result)
	}
}

// prepare reloads the marketplace registry and today's quota usage.
func (o *Orchestrator) prepare(ctx context.Context) error {
	if err := o.classifier.Reload(ctx); err != nil {
		o.log.Warn("Failed to reload marketplace registry", logger.Error(err))
	}
	if err := o.quota.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh quota: %w", err)
	}
	return nil
}

func (o *Orchestrator) finish(stats *RunStats) *RunStats {
	stats.FinishedAt = o.now().UTC()
	o.metrics.SetQuotaRemaining(o.quota.Remaining(context.Background()))
	o.log.Info("Search run finished",
		logger.String("run_id", stats.RunID),
		logger.Int("markets", stats.MarketsProcessed),
		logger.Int("searched", stats.KeywordsSearched),
		logger.Int("skipped", stats.KeywordsSkipped),
		logger.Int("new_leads", stats.NewLeads),
		logger.Int("errors", len(stats.Errors)),
	)
	return stats
}
