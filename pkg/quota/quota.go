// Package quota enforces the daily ceiling on search provider calls.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
)

// Unlimited is returned by Remaining when no ceiling applies.
const Unlimited = -1

// ErrQuotaExceeded is returned by Reserve once the day's ceiling is reached.
var ErrQuotaExceeded = errors.New("daily search limit reached")

// AuditCounter counts persisted search attempts.
type AuditCounter interface {
	CountAuditsSince(ctx context.Context, since time.Time) (int, error)
}

// LimitSource supplies a persisted override of the configured ceiling.
type LimitSource interface {
	MaxSearches(ctx context.Context, fallback int) (int, error)
}

// Tracker gates search calls against a daily ceiling. A ceiling of 0 means
// unlimited. The day's usage starts from the number of audit records written
// since UTC midnight and is then tracked by the Counter as searches are reserved.
type Tracker struct {
	audits  AuditCounter
	limits  LimitSource
	counter Counter
	log     logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	fallback int
	ceiling  int
	day      string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCounter replaces the in-process counter, e.g. with a RedisCounter.
func WithCounter(c Counter) Option { return func(t *Tracker) { t.counter = c } }

// WithLimitSource lets a persisted setting override the configured ceiling.
func WithLimitSource(l LimitSource) Option { return func(t *Tracker) { t.limits = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(t *Tracker) { t.log = l } }

// NewTracker creates a tracker with the configured ceiling.
func NewTracker(audits AuditCounter, ceiling int, opts ...Option) *Tracker {
	t := &Tracker{
		audits:   audits,
		counter:  NewMemoryCounter(),
		log:      logger.NewNop(),
		now:      time.Now,
		fallback: ceiling,
		ceiling:  ceiling,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Refresh reloads the ceiling and seeds the counter from today's audit records,
// picking up searches made by other processes. It runs automatically on first
// use and whenever the UTC day changes.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshLocked(ctx, dayOf(t.now()))
}

func (t *Tracker) refreshLocked(ctx context.Context, day string) error {
	ceiling := t.fallback
	if t.limits != nil {
		n, err := t.limits.MaxSearches(ctx, t.fallback)
		if err != nil {
			return fmt.Errorf("load search limit: %w", err)
		}
		ceiling = n
	}

	start, _ := time.Parse(time.DateOnly, day)
	used, err := t.audits.CountAuditsSince(ctx, start)
	if err != nil {
		return fmt.Errorf("count today's searches: %w", err)
	}
	if err := t.counter.Seed(ctx, day, used); err != nil {
		return err
	}

	t.ceiling = ceiling
	t.day = day
	t.log.Debug("Quota refreshed",
		logger.String("day", day),
		logger.Int("used", used),
		logger.Int("ceiling", ceiling),
	)
	return nil
}

// current returns today's key and the ceiling, refreshing on a day change.
func (t *Tracker) current(ctx context.Context) (string, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	day := dayOf(t.now())
	if day != t.day {
		if err := t.refreshLocked(ctx, day); err != nil {
			return day, t.ceiling, err
		}
	}
	return day, t.ceiling, nil
}

// Check returns nil when another search may be issued, an error wrapping
// ErrQuotaExceeded at the ceiling, and any other error when usage could not be read.
func (t *Tracker) Check(ctx context.Context) error {
	day, ceiling, err := t.current(ctx)
	if err != nil {
		return err
	}
	if ceiling == 0 {
		return nil
	}
	used, err := t.counter.Used(ctx, day)
	if err != nil {
		return fmt.Errorf("read search usage: %w", err)
	}
	if used >= ceiling {
		return fmt.Errorf("%w (%s)", ErrQuotaExceeded, usage(used, ceiling))
	}
	return nil
}

// CanSearch reports whether another search may be issued and, if not, why.
func (t *Tracker) CanSearch(ctx context.Context) (bool, string) {
	if err := t.Check(ctx); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// Remaining returns the searches left today, or Unlimited.
func (t *Tracker) Remaining(ctx context.Context) int {
	day, ceiling, err := t.current(ctx)
	if err != nil {
		return 0
	}
	if ceiling == 0 {
		return Unlimited
	}
	used, err := t.counter.Used(ctx, day)
	if err != nil {
		return 0
	}
	return max(0, ceiling-used)
}

// Reserve takes one search slot before the provider is called. It returns an
// error wrapping ErrQuotaExceeded when the ceiling has been reached.
func (t *Tracker) Reserve(ctx context.Context) error {
	day, ceiling, err := t.current(ctx)
	if err != nil {
		return err
	}
	used, ok, err := t.counter.Reserve(ctx, day, ceiling)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w (%s)", ErrQuotaExceeded, usage(used, ceiling))
	}
	return nil
}

// Release returns a slot taken by Reserve when the search did not complete.
func (t *Tracker) Release(ctx context.Context) {
	t.mu.Lock()
	day := t.day
	t.mu.Unlock()
	if err := t.counter.Release(ctx, day); err != nil {
		t.log.Warn("Failed to release quota slot", logger.Error(err))
	}
}

// Stats summarises today's usage.
func (t *Tracker) Stats(ctx context.Context) (models.SearchStats, error) {
	day, ceiling, err := t.current(ctx)
	if err != nil {
		return models.SearchStats{}, err
	}
	used, err := t.counter.Used(ctx, day)
	if err != nil {
		return models.SearchStats{}, err
	}
	stats := models.SearchStats{
		SearchesToday: used,
		MaxSearches:   ceiling,
		IsUnlimited:   ceiling == 0,
		Remaining:     Unlimited,
	}
	if ceiling > 0 {
		stats.Remaining = max(0, ceiling-used)
	}
	return stats, nil
}

func usage(used, ceiling int) string { return fmt.Sprintf("%d/%d", used, ceiling) }

func dayOf(t time.Time) string { return t.UTC().Format(time.DateOnly) }
