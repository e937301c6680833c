// Package scheduler polls for due editions and sends them.
//
// A Scheduler runs one poll immediately on Start and then one per schedule
// slot. Each poll lists editions that are scheduled for now or earlier and
// hands them to the sender one by one. Errors and panics of a single edition
// are logged and never stop the loop. Stop cancels the loop and waits for the
// poll in progress; a send that already started runs to completion.
//
// The loop has no cross-process lock. The move to sending is a conditional
// write in the store, so when several processes poll one database the losers
// get newsletter.ErrInvalidTransition and log it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/letterpress/internal/delivery"
	"github.com/dmitrymomot/letterpress/internal/metrics"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

// DefaultSchedule polls once a minute.
const DefaultSchedule = "@every 60s"

var (
	ErrAlreadyStarted  = errors.New("scheduler: already started")
	ErrNotStarted      = errors.New("scheduler: not started")
	ErrInvalidSchedule = errors.New("scheduler: invalid schedule")
)

// Lister finds editions whose scheduled time has come.
type Lister interface {
	DueEditions(ctx context.Context, now time.Time) ([]newsletter.Edition, error)
}

// Sender sends one edition.
type Sender interface {
	Send(ctx context.Context, editionID int64, baseURL string) (*delivery.Result, error)
}

// Scheduler is the poll loop.
type Scheduler struct {
	lister   Lister
	sender   Sender
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	baseURL  string
	spec     string
	mu       sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSchedule sets the poll schedule: a cron expression (5 or 6 fields) or a
// descriptor such as "@every 30s" or "@hourly".
func WithSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimer replaces time.After. Tests use it to fire polls by hand.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		if after != nil {
			s.after = after
		}
	}
}

// New creates a Scheduler that sends due editions with baseURL as the public
// address for tracking and unsubscribe links.
func New(lister Lister, sender Sender, baseURL string, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		lister:  lister,
		sender:  sender,
		baseURL: baseURL,
		spec:    DefaultSchedule,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		after:   time.After,
	}
	for _, opt := range opts {
		opt(s)
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(s.spec)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, s.spec, err)
	}
	s.schedule = schedule
	return s, nil
}

// Start launches the loop. The first poll runs right away.
// Cancelling ctx stops the loop like Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done: // loop ended with its start context
		default:
			return ErrAlreadyStarted
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, s.done)

	s.logger.InfoContext(ctx, "scheduler started", slog.String("schedule", s.spec))
	return nil
}

// Stop cancels the loop and waits for the current poll, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.InfoContext(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthcheck reports ErrNotStarted while the loop is not running.
func (s *Scheduler) Healthcheck(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return ErrNotStarted
	}
	select {
	case <-s.done:
		return ErrNotStarted
	default:
		return nil
	}
}

// Shutdown returns Stop as a shutdown hook.
func (s *Scheduler) Shutdown() func(context.Context) error {
	return s.Stop
}

func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		s.Tick(ctx)

		now := s.now()
		wait := max(s.schedule.Next(now).Sub(now), 0)
		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
		}
	}
}

// Tick runs one poll: every due edition is sent in listing order.
// No new send starts once ctx is cancelled; started sends are not interrupted.
func (s *Scheduler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordTick(fmt.Errorf("panic: %v", p))
			s.logger.ErrorContext(ctx, "panic in scheduler tick",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	due, err := s.lister.DueEditions(ctx, s.now())
	metrics.RecordTick(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list due editions", slog.Any("error", err))
		return
	}

	for _, e := range due {
		if ctx.Err() != nil {
			return
		}
		s.send(context.WithoutCancel(ctx), e)
	}
}

func (s *Scheduler) send(ctx context.Context, e newsletter.Edition) {
	log := s.logger.With(
		slog.Int64("edition_id", e.ID),
		slog.Int64("newsletter_id", e.NewsletterID),
	)
	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "panic while sending scheduled edition", slog.Any("panic", p))
		}
	}()

	res, err := s.sender.Send(ctx, e.ID, s.baseURL)
	if err != nil {
		log.ErrorContext(ctx, "failed to send scheduled edition", slog.Any("error", err))
		return
	}
	log.InfoContext(ctx, "scheduled edition sent",
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)
}
