package tracking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/store/memstore"
	"github.com/dmitrymomot/letterpress/internal/tracking"
)

type fixture struct {
	store   *memstore.Store
	edition *newsletter.Edition
}

func newFixture(t *testing.T, tokens ...string) fixture {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()

	n := &newsletter.Newsletter{Name: "Weekly"}
	require.NoError(t, s.CreateNewsletter(ctx, n))
	e := &newsletter.Edition{NewsletterID: n.ID, Subject: "Hi"}
	require.NoError(t, s.CreateEdition(ctx, e))

	for i, tok := range tokens {
		require.NoError(t, s.CreateTrackingRecord(ctx, &newsletter.TrackingRecord{
			Token: tok, EditionID: e.ID, SubscriberID: int64(i + 1),
		}))
	}
	return fixture{store: s, edition: e}
}

func TestRecordOpen_FirstOpenIsSticky(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "tok")

	t1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(3 * time.Hour)
	clock := t1
	svc := tracking.NewService(f.store, tracking.WithClock(func() time.Time { return clock }))

	require.NoError(t, svc.RecordOpen(ctx, "tok", "1.1.1.1", "Mail/1"))
	clock = t2
	require.NoError(t, svc.RecordOpen(ctx, "tok", "2.2.2.2", ""))

	records, err := f.store.TrackingRecords(ctx, f.edition.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 2, rec.OpenCount)
	require.NotNil(t, rec.OpenedAt)
	assert.True(t, rec.OpenedAt.Equal(t1))
	require.NotNil(t, rec.LastOpenedAt)
	assert.True(t, rec.LastOpenedAt.Equal(t2))
	assert.Equal(t, "2.2.2.2", rec.IPAddress)
	assert.Equal(t, "Mail/1", rec.UserAgent, "empty user agent keeps the previous one")

	e, err := f.store.GetEdition(ctx, f.edition.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.TotalOpens)
	assert.Equal(t, 1, e.UniqueOpens)
}

func TestRecordOpen_UnknownTokenIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "known")
	svc := tracking.NewService(f.store)

	require.NoError(t, svc.RecordOpen(ctx, "unknown", "1.1.1.1", "ua"))

	records, err := f.store.TrackingRecords(ctx, f.edition.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, records[0].OpenCount)

	e, err := f.store.GetEdition(ctx, f.edition.ID)
	require.NoError(t, err)
	assert.Zero(t, e.TotalOpens)
}

type failingStore struct {
	tracking.Store
	err error
}

func (f failingStore) ApplyOpen(context.Context, string, newsletter.Open) (*newsletter.TrackingRecord, bool, error) {
	return nil, false, f.err
}

func (f failingStore) OpenCounts(context.Context, int64) (int, int, int, error) {
	return 0, 0, 0, f.err
}

func TestRecordOpen_StoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	svc := tracking.NewService(failingStore{err: boom})
	require.ErrorIs(t, svc.RecordOpen(context.Background(), "tok", "", ""), boom)

	_, err := svc.Stats(context.Background(), 1)
	require.ErrorIs(t, err, boom)
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "a", "b", "c")
	svc := tracking.NewService(f.store)

	require.NoError(t, svc.RecordOpen(ctx, "a", "", ""))
	require.NoError(t, svc.RecordOpen(ctx, "a", "", ""))
	require.NoError(t, svc.RecordOpen(ctx, "b", "", ""))

	stats, err := svc.Stats(ctx, f.edition.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.Stats{Sent: 3, Opened: 2, TotalOpens: 3, OpenRate: 66.67}, stats)
}

func TestOpenRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opened, sent int
		want         float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{3, 3, 100},
		{1, 8, 12.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tracking.OpenRate(tt.opened, tt.sent), 0.0001, "%d/%d", tt.opened, tt.sent)
	}
}
