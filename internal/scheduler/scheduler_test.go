package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/leadsmith/pkg/orchestrator"
)

type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (r *fakeRunner) RunForAllMarkets(ctx context.Context) (*orchestrator.RunStats, error) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &orchestrator.RunStats{RunID: "run", KeywordsSearched: 2}, nil
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	for _, spec := range []string{"", "every day", "61 * * * *", "* * * * * *"} {
		_, err := New(spec, &fakeRunner{}, nil)
		assert.Error(t, err, spec)
	}
}

func TestRunNow(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("0 6 * * *", runner, nil)
	require.NoError(t, err)

	assert.Nil(t, s.Last())
	stats, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.KeywordsSearched)
	assert.Same(t, stats, s.Last())
}

func TestRunNowError(t *testing.T) {
	s, err := New("@daily", &fakeRunner{err: errors.New("db down")}, nil)
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Nil(t, s.Last())
}

func TestRunNowBusy(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s, err := New("@hourly", runner, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(runner.release)
	require.NoError(t, <-done)
}

func TestScheduledRun(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("@every 1s", runner, nil)
	require.NoError(t, err)

	s.Start()
	assert.False(t, s.Next().IsZero())
	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
	assert.NotNil(t, s.Last())
}
