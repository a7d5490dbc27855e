// Package scheduler runs the all-markets search batch on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/pkg/orchestrator"
)

// ErrBusy is returned by RunNow while another run is in progress.
var ErrBusy = errors.New("a search run is already in progress")

// Runner executes one batch over every active market.
type Runner interface {
	RunForAllMarkets(ctx context.Context) (*orchestrator.RunStats, error)
}

// Scheduler triggers Runner on a standard five-field cron expression or a
// descriptor such as "@daily". Runs never overlap.
type Scheduler struct {
	log    logger.Logger
	runner Runner
	cron   *cron.Cron
	spec   string
	entry  cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	last    *orchestrator.RunStats
}

// New validates spec and prepares a stopped scheduler.
func New(spec string, runner Runner, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:    log,
		runner: runner,
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule search run: %w", err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", logger.String("spec", s.spec), logger.String("next", s.Next().Format(time.RFC3339)))
}

// Stop cancels any run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// Next returns the next scheduled fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Last returns the stats of the most recent completed run.
func (s *Scheduler) Last() *orchestrator.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow executes a batch immediately unless one is already running.
func (s *Scheduler) RunNow(ctx context.Context) (*orchestrator.RunStats, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	stats, err := s.runner.RunForAllMarkets(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()
	return stats, nil
}

func (s *Scheduler) tick() {
	stats, err := s.RunNow(s.ctx)
	switch {
	case errors.Is(err, ErrBusy):
		s.log.Warn("Skipping scheduled run, previous run still active")
	case err != nil:
		s.log.Error("Scheduled run failed", logger.Error(err))
	default:
		s.log.Info("Scheduled run finished",
			logger.String("run_id", stats.RunID),
			logger.Int("searched", stats.KeywordsSearched),
			logger.Int("new_leads", stats.NewLeads),
			logger.Bool("quota_exhausted", stats.QuotaExhausted),
		)
	}
}
