package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudits struct {
	count int
	since time.Time
	calls int
	err   error
}

func (f *fakeAudits) CountAuditsSince(_ context.Context, since time.Time) (int, error) {
	f.since = since
	f.calls++
	return f.count, f.err
}

type fakeLimit int

func (f fakeLimit) MaxSearches(context.Context, int) (int, error) { return int(f), nil }

var noon = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

func TestCeilingReached(t *testing.T) {
	ctx := context.Background()
	audits := &fakeAudits{count: 5}
	tr := NewTracker(audits, 5, WithClock(func() time.Time { return noon }))

	ok, reason := tr.CanSearch(ctx)
	assert.False(t, ok)
	assert.Contains(t, reason, "5/5")
	assert.Equal(t, 0, tr.Remaining(ctx))
	assert.ErrorIs(t, tr.Reserve(ctx), ErrQuotaExceeded)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), audits.since)
}

func TestUnlimited(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(&fakeAudits{count: 10_000}, 0, WithClock(func() time.Time { return noon }))

	ok, reason := tr.CanSearch(ctx)
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, Unlimited, tr.Remaining(ctx))
	require.NoError(t, tr.Reserve(ctx))

	stats, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.IsUnlimited)
	assert.Equal(t, Unlimited, stats.Remaining)
}

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(&fakeAudits{count: 1}, 3, WithClock(func() time.Time { return noon }))

	require.NoError(t, tr.Reserve(ctx))
	assert.Equal(t, 1, tr.Remaining(ctx))

	tr.Release(ctx)
	assert.Equal(t, 2, tr.Remaining(ctx))

	require.NoError(t, tr.Reserve(ctx))
	require.NoError(t, tr.Reserve(ctx))
	assert.ErrorIs(t, tr.Reserve(ctx), ErrQuotaExceeded)

	stats, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SearchesToday)
	assert.Equal(t, 0, stats.Remaining)
}

func TestLimitSourceOverridesCeiling(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(&fakeAudits{count: 4}, 100,
		WithLimitSource(fakeLimit(4)),
		WithClock(func() time.Time { return noon }))

	ok, _ := tr.CanSearch(ctx)
	assert.False(t, ok)
}

func TestDayChangeReloadsUsage(t *testing.T) {
	ctx := context.Background()
	now := noon
	audits := &fakeAudits{count: 2}
	tr := NewTracker(audits, 2, WithClock(func() time.Time { return now }))

	ok, _ := tr.CanSearch(ctx)
	assert.False(t, ok)

	now = noon.Add(24 * time.Hour)
	audits.count = 0
	ok, _ = tr.CanSearch(ctx)
	assert.True(t, ok)
	assert.Equal(t, 2, audits.calls)
}

func TestCheck(t *testing.T) {
	dbDown := errors.New("database is locked")
	tests := []struct {
		name      string
		audits    *fakeAudits
		ceiling   int
		wantErr   error
		wantQuota bool
	}{
		{name: "under ceiling", audits: &fakeAudits{count: 1}, ceiling: 3},
		{name: "unlimited", audits: &fakeAudits{count: 50}, ceiling: 0},
		{name: "at ceiling", audits: &fakeAudits{count: 3}, ceiling: 3, wantQuota: true},
		{name: "storage error", audits: &fakeAudits{err: dbDown}, ceiling: 3, wantErr: dbDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.audits, tt.ceiling, WithClock(func() time.Time { return noon }))
			err := tr.Check(context.Background())
			switch {
			case tt.wantQuota:
				assert.ErrorIs(t, err, ErrQuotaExceeded)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, ErrQuotaExceeded)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestRefreshPicksUpOtherProcesses(t *testing.T) {
	ctx := context.Background()
	audits := &fakeAudits{count: 1}
	tr := NewTracker(audits, 3, WithClock(func() time.Time { return noon }))

	require.NoError(t, tr.Reserve(ctx))
	assert.Equal(t, 1, tr.Remaining(ctx))

	audits.count = 3
	assert.Equal(t, 1, tr.Remaining(ctx))

	require.NoError(t, tr.Refresh(ctx))
	assert.Equal(t, 0, tr.Remaining(ctx))
	assert.ErrorIs(t, tr.Check(ctx), ErrQuotaExceeded)
}

func TestConcurrentReserveNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(&fakeAudits{}, 10, WithClock(func() time.Time { return noon }))

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Reserve(ctx) == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), granted.Load())
}

func TestRedisCounter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	counter := NewRedisCounter(client, "test:quota")
	tr := NewTracker(&fakeAudits{count: 1}, 3,
		WithCounter(counter),
		WithClock(func() time.Time { return noon }))

	require.NoError(t, tr.Reserve(ctx))
	require.NoError(t, tr.Reserve(ctx))
	assert.ErrorIs(t, tr.Reserve(ctx), ErrQuotaExceeded)

	tr.Release(ctx)
	used, err := counter.Used(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, 2, used)

	// A second process seeding from a lower audit count keeps the shared count.
	other := NewTracker(&fakeAudits{count: 0}, 3,
		WithCounter(counter),
		WithClock(func() time.Time { return noon }))
	assert.Equal(t, 1, other.Remaining(ctx))
	assert.True(t, mr.Exists("test:quota:2026-10-19"))
}

func TestNewRedisClientRequiresAddress(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyAddress)
}
