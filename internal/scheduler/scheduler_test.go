package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/delivery"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/scheduler"
)

var now = time.Date(2025, 6, 2, 10, 2, 30, 0, time.UTC)

type fakeTimer struct {
	requested chan time.Duration
	fire      chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{requested: make(chan time.Duration, 16), fire: make(chan time.Time)}
}

func (f *fakeTimer) after(d time.Duration) <-chan time.Time {
	f.requested <- d
	return f.fire
}

func (f *fakeTimer) waitRequest(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-f.requested:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never asked for the next slot")
		return 0
	}
}

type listerFunc func(ctx context.Context, now time.Time) ([]newsletter.Edition, error)

func (f listerFunc) DueEditions(ctx context.Context, now time.Time) ([]newsletter.Edition, error) {
	return f(ctx, now)
}

type fakeSender struct {
	fail  map[int64]error
	panic map[int64]bool
	mu    sync.Mutex
	calls []int64
}

func (f *fakeSender) Send(_ context.Context, id int64, baseURL string) (*delivery.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.panic[id] {
		panic("provider exploded")
	}
	if err := f.fail[id]; err != nil {
		return nil, err
	}
	return &delivery.Result{Sent: 1, Errors: []string{}}, nil
}

func (f *fakeSender) sent() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

func editions(ids ...int64) []newsletter.Edition {
	out := make([]newsletter.Edition, 0, len(ids))
	for _, id := range ids {
		out = append(out, newsletter.Edition{ID: id, Status: newsletter.StatusScheduled})
	}
	return out
}

func TestNew_InvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := scheduler.New(listerFunc(nil), &fakeSender{}, "", scheduler.WithSchedule("every now and then"))
	require.ErrorIs(t, err, scheduler.ErrInvalidSchedule)
}

func TestScheduler_TicksImmediatelyThenOnSchedule(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		polls int
	)
	lister := listerFunc(func(_ context.Context, at time.Time) ([]newsletter.Edition, error) {
		assert.True(t, at.Equal(now))
		mu.Lock()
		defer mu.Unlock()
		polls++
		return editions(int64(polls)), nil
	})
	sender := &fakeSender{}
	timer := newFakeTimer()

	s, err := scheduler.New(lister, sender, "https://x.io",
		scheduler.WithClock(func() time.Time { return now }),
		scheduler.WithTimer(timer.after),
	)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Healthcheck(context.Background()))

	assert.Equal(t, 60*time.Second, timer.waitRequest(t))
	assert.Equal(t, []int64{1}, sender.sent())

	timer.fire <- now
	assert.Equal(t, 60*time.Second, timer.waitRequest(t))
	assert.Equal(t, []int64{1, 2}, sender.sent())

	require.NoError(t, s.Stop(context.Background()))
	require.ErrorIs(t, s.Healthcheck(context.Background()), scheduler.ErrNotStarted)

	select {
	case timer.fire <- now:
		t.Fatal("loop still running after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []int64{1, 2}, sender.sent())
}

func TestScheduler_CronSchedule(t *testing.T) {
	t.Parallel()

	timer := newFakeTimer()
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) { return nil, nil })

	s, err := scheduler.New(lister, &fakeSender{}, "https://x.io",
		scheduler.WithSchedule("*/5 * * * *"),
		scheduler.WithClock(func() time.Time { return now }),
		scheduler.WithTimer(timer.after),
	)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	assert.Equal(t, 2*time.Minute+30*time.Second, timer.waitRequest(t))
}

func TestScheduler_EditionFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{
		fail:  map[int64]error{1: errors.New("no recipients")},
		panic: map[int64]bool{2: true},
	}
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) {
		return editions(1, 2, 3), nil
	})

	s, err := scheduler.New(lister, sender, "https://x.io")
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.Tick(context.Background()) })
	assert.Equal(t, []int64{1, 2, 3}, sender.sent())
}

func TestScheduler_ListErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	timer := newFakeTimer()
	calls := make(chan struct{}, 4)
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) {
		calls <- struct{}{}
		return nil, errors.New("db unavailable")
	})

	s, err := scheduler.New(lister, &fakeSender{}, "https://x.io", scheduler.WithTimer(timer.after))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	timer.waitRequest(t)
	timer.fire <- now
	timer.waitRequest(t)
	assert.Len(t, calls, 2)

	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_ListPanicKeepsLoopRunning(t *testing.T) {
	t.Parallel()

	timer := newFakeTimer()
	calls := make(chan struct{}, 4)
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) {
		calls <- struct{}{}
		var byID map[int64]newsletter.Edition
		byID[1] = newsletter.Edition{} // nil map write
		return nil, nil
	})

	s, err := scheduler.New(lister, &fakeSender{}, "https://x.io", scheduler.WithTimer(timer.after))
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.Tick(context.Background()) })

	require.NoError(t, s.Start(context.Background()))
	timer.waitRequest(t)
	timer.fire <- now
	timer.waitRequest(t)
	assert.Len(t, calls, 3)
	require.NoError(t, s.Healthcheck(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_TickSkipsWhenCancelled(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) {
		return editions(1), nil
	})
	s, err := scheduler.New(lister, sender, "https://x.io")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Tick(ctx)
	assert.Empty(t, sender.sent())
}

func TestScheduler_Lifecycle(t *testing.T) {
	t.Parallel()

	timer := newFakeTimer()
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) { return nil, nil })
	s, err := scheduler.New(lister, &fakeSender{}, "https://x.io", scheduler.WithTimer(timer.after))
	require.NoError(t, err)

	require.ErrorIs(t, s.Stop(context.Background()), scheduler.ErrNotStarted)
	require.ErrorIs(t, s.Healthcheck(context.Background()), scheduler.ErrNotStarted)

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), scheduler.ErrAlreadyStarted)
	timer.waitRequest(t)
	require.NoError(t, s.Stop(context.Background()))

	require.NoError(t, s.Start(context.Background()), "restart after stop")
	timer.waitRequest(t)
	require.NoError(t, s.Shutdown()(context.Background()))
}

func TestScheduler_StopWaitsForInFlightSend(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished bool
	var mu sync.Mutex

	sender := senderFunc(func(ctx context.Context, id int64, _ string) (*delivery.Result, error) {
		close(started)
		<-release
		mu.Lock()
		finished = ctx.Err() == nil
		mu.Unlock()
		return &delivery.Result{}, nil
	})
	lister := listerFunc(func(context.Context, time.Time) ([]newsletter.Edition, error) {
		return editions(1), nil
	})
	s, err := scheduler.New(lister, sender, "https://x.io", scheduler.WithTimer(newFakeTimer().after))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the send finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished, "send context must not be cancelled by Stop")
}

type senderFunc func(ctx context.Context, id int64, baseURL string) (*delivery.Result, error)

func (f senderFunc) Send(ctx context.Context, id int64, baseURL string) (*delivery.Result, error) {
	return f(ctx, id, baseURL)
}
