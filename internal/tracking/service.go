package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dmitrymomot/letterpress/internal/metrics"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

// Store is the persistence the tracking service needs.
type Store interface {
	// ApplyOpen atomically applies o to the record with token and reports
	// whether it was the first open. Returns newsletter.ErrTrackingRecordNotFound
	// for unknown tokens.
	ApplyOpen(ctx context.Context, token string, o newsletter.Open) (*newsletter.TrackingRecord, bool, error)
	// IncrementEditionOpens adds one to the edition total and, when unique, to its unique opens.
	IncrementEditionOpens(ctx context.Context, editionID int64, unique bool) error
	// OpenCounts aggregates the tracking records of an edition.
	OpenCounts(ctx context.Context, editionID int64) (sent, opened, totalOpens int, err error)
}

// Stats summarises engagement for one edition.
type Stats struct {
	Sent       int     `json:"sent"`
	Opened     int     `json:"opened"`
	TotalOpens int     `json:"total_opens"`
	OpenRate   float64 `json:"open_rate"` // percent, two decimals
}

// Service records opens and reports statistics.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source for open timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a tracking service.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordOpen applies one pixel hit. Unknown tokens are a no-op and return nil.
func (s *Service) RecordOpen(ctx context.Context, token, ip, userAgent string) error {
	rec, first, err := s.store.ApplyOpen(ctx, token, newsletter.Open{
		At:        s.now(),
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if errors.Is(err, newsletter.ErrTrackingRecordNotFound) {
		metrics.RecordOpen(metrics.OpenUnknown)
		s.logger.DebugContext(ctx, "open for unknown token ignored", slog.String("token", token))
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply open: %w", err)
	}

	if first {
		metrics.RecordOpen(metrics.OpenFirst)
	} else {
		metrics.RecordOpen(metrics.OpenRepeat)
	}

	if err := s.store.IncrementEditionOpens(ctx, rec.EditionID, first); err != nil {
		return fmt.Errorf("increment edition opens: %w", err)
	}
	return nil
}

// Stats returns engagement figures for an edition. The open rate is 0 when nothing was sent.
func (s *Service) Stats(ctx context.Context, editionID int64) (Stats, error) {
	sent, opened, total, err := s.store.OpenCounts(ctx, editionID)
	if err != nil {
		return Stats{}, fmt.Errorf("open counts: %w", err)
	}
	return Stats{
		Sent:       sent,
		Opened:     opened,
		TotalOpens: total,
		OpenRate:   OpenRate(opened, sent),
	}, nil
}

// OpenRate is opened/sent as a percentage rounded to two decimals.
func OpenRate(opened, sent int) float64 {
	if sent <= 0 {
		return 0
	}
	return math.Round(float64(opened)/float64(sent)*10000) / 100
}
