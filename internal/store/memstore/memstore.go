// Package memstore is an in-memory implementation of the pipeline stores.
// It backs tests and single-process demos; all data is lost on exit.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

type subscriptionKey struct {
	newsletterID int64
	subscriberID int64
}

// Store keeps every entity in maps guarded by one mutex. Returned values are copies.
type Store struct {
	newsletters   map[int64]newsletter.Newsletter
	editions      map[int64]newsletter.Edition
	sections      map[int64][]newsletter.Section
	articles      map[int64][]newsletter.Article
	subscribers   map[int64]newsletter.Subscriber
	subscriptions map[subscriptionKey]newsletter.Subscription
	roster        map[int64][]int64 // newsletter id -> subscriber ids in join order
	tracking      map[string]*newsletter.TrackingRecord
	trackingOrder []string
	now           func() time.Time
	welcome       WelcomeHook
	nextID        int64
	mu            sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WelcomeHook is called by Subscribe, with the store locked, when a
// subscription is created or reactivated on a newsletter that sends welcome
// emails. An error leaves the store unchanged.
type WelcomeHook func(ctx context.Context, newsletterID int64, sub *newsletter.Subscriber) error

// WithWelcomeHook sets the hook run by Subscribe.
func WithWelcomeHook(h WelcomeHook) Option {
	return func(s *Store) {
		s.welcome = h
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		newsletters:   make(map[int64]newsletter.Newsletter),
		editions:      make(map[int64]newsletter.Edition),
		sections:      make(map[int64][]newsletter.Section),
		articles:      make(map[int64][]newsletter.Article),
		subscribers:   make(map[int64]newsletter.Subscriber),
		subscriptions: make(map[subscriptionKey]newsletter.Subscription),
		roster:        make(map[int64][]int64),
		tracking:      make(map[string]*newsletter.TrackingRecord),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateNewsletter stores n and assigns its id.
func (s *Store) CreateNewsletter(_ context.Context, n *newsletter.Newsletter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.newsletters[n.ID] = *n
	return nil
}

// GetNewsletter returns newsletter.ErrNewsletterNotFound for unknown ids.
func (s *Store) GetNewsletter(_ context.Context, id int64) (*newsletter.Newsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.newsletters[id]
	if !ok {
		return nil, newsletter.ErrNewsletterNotFound
	}
	return &n, nil
}

// CreateEdition stores e and assigns its id. Empty status defaults to draft.
func (s *Store) CreateEdition(_ context.Context, e *newsletter.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.newsletters[e.NewsletterID]; !ok {
		return newsletter.ErrNewsletterNotFound
	}
	e.ID = s.id()
	if e.Status == "" {
		e.Status = newsletter.StatusDraft
	}
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	s.editions[e.ID] = cloneEdition(*e)
	return nil
}

// GetEdition returns newsletter.ErrEditionNotFound for unknown ids.
func (s *Store) GetEdition(_ context.Context, id int64) (*newsletter.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.editions[id]
	if !ok {
		return nil, newsletter.ErrEditionNotFound
	}
	e = cloneEdition(e)
	return &e, nil
}

// UpdateEditionStatus copies the lifecycle fields of e onto the stored
// edition when its status is still from. Open counters are kept.
func (s *Store) UpdateEditionStatus(_ context.Context, e *newsletter.Edition, from newsletter.EditionStatus) error {
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", newsletter.ErrInvalidTransition, e.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.editions[e.ID]
	if !ok {
		return newsletter.ErrEditionNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("%w: edition %d is %s, not %s", newsletter.ErrInvalidTransition, e.ID, stored.Status, from)
	}
	stored.Status = e.Status
	stored.ScheduledFor = cloneTime(e.ScheduledFor)
	stored.SentAt = cloneTime(e.SentAt)
	stored.TotalRecipients = e.TotalRecipients
	stored.UpdatedAt = e.UpdatedAt
	s.editions[e.ID] = stored
	return nil
}

// DueEditions lists scheduled editions whose time has come, oldest first.
func (s *Store) DueEditions(_ context.Context, now time.Time) ([]newsletter.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []newsletter.Edition
	for _, e := range s.editions {
		if e.IsDue(now) {
			due = append(due, cloneEdition(e))
		}
	}
	slices.SortFunc(due, func(a, b newsletter.Edition) int {
		if c := a.ScheduledFor.Compare(*b.ScheduledFor); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return due, nil
}

// AddSection attaches a section to an edition and assigns its id.
func (s *Store) AddSection(_ context.Context, sec *newsletter.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.editions[sec.EditionID]; !ok {
		return newsletter.ErrEditionNotFound
	}
	sec.ID = s.id()
	s.sections[sec.EditionID] = append(s.sections[sec.EditionID], *sec)
	return nil
}

// ListSections returns all sections of an edition in insertion order.
func (s *Store) ListSections(_ context.Context, editionID int64) ([]newsletter.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sections[editionID]), nil
}

// AddArticle attaches a legacy article to an edition and assigns its id.
func (s *Store) AddArticle(_ context.Context, a *newsletter.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.editions[a.EditionID]; !ok {
		return newsletter.ErrEditionNotFound
	}
	a.ID = s.id()
	s.articles[a.EditionID] = append(s.articles[a.EditionID], *a)
	return nil
}

// ListArticles returns the articles of an edition by display order.
func (s *Store) ListArticles(_ context.Context, editionID int64) ([]newsletter.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.articles[editionID])
	newsletter.SortArticles(out)
	return out, nil
}

// Subscribe creates the subscriber when the address is new and (re)activates
// its subscription to the newsletter. created reports whether the subscription is new
// or was reactivated.
func (s *Store) Subscribe(ctx context.Context, newsletterID int64, email, name string) (*newsletter.Subscriber, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.newsletters[newsletterID]
	if !ok {
		return nil, false, newsletter.ErrNewsletterNotFound
	}

	now := s.now()
	var sub *newsletter.Subscriber
	for id, existing := range s.subscribers {
		if strings.EqualFold(existing.Email, email) {
			sub = &existing
			sub.ID = id
			break
		}
	}
	if sub == nil {
		sub = &newsletter.Subscriber{
			ID:        s.id(),
			Email:     email,
			Name:      name,
			Status:    newsletter.SubscriberActive,
			CreatedAt: now,
		}
	} else if sub.Status == newsletter.SubscriberUnsubscribed {
		sub.Status = newsletter.SubscriberActive
	}

	key := subscriptionKey{newsletterID, sub.ID}
	current, exists := s.subscriptions[key]
	created := !exists || current.Status != newsletter.Subscribed
	if created && n.SendWelcomeEmail && s.welcome != nil {
		if err := s.welcome(ctx, newsletterID, sub); err != nil {
			return nil, false, fmt.Errorf("enqueue welcome: %w", err)
		}
	}

	s.subscribers[sub.ID] = *sub
	if !created {
		return sub, false, nil
	}
	if !exists {
		s.roster[newsletterID] = append(s.roster[newsletterID], sub.ID)
	}
	s.subscriptions[key] = newsletter.Subscription{
		NewsletterID: newsletterID,
		SubscriberID: sub.ID,
		Status:       newsletter.Subscribed,
		SubscribedAt: now,
	}
	return sub, true, nil
}

// SetSubscriberStatus changes the global status of a subscriber.
func (s *Store) SetSubscriberStatus(_ context.Context, subscriberID int64, status newsletter.SubscriberStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[subscriberID]
	if !ok {
		return newsletter.ErrSubscriberNotFound
	}
	sub.Status = status
	s.subscribers[subscriberID] = sub
	return nil
}

// Unsubscribe marks the subscription unsubscribed. Repeated calls are no-ops.
func (s *Store) Unsubscribe(_ context.Context, subscriberID, newsletterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subscriptionKey{newsletterID, subscriberID}
	sub, ok := s.subscriptions[key]
	if !ok {
		return newsletter.ErrSubscriptionNotFound
	}
	if sub.Status == newsletter.Unsubscribed {
		return nil
	}
	now := s.now()
	sub.Status = newsletter.Unsubscribed
	sub.UnsubscribedAt = &now
	s.subscriptions[key] = sub
	return nil
}

// ListRecipients returns the full roster of a newsletter in join order,
// eligible or not.
func (s *Store) ListRecipients(_ context.Context, newsletterID int64) ([]newsletter.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.roster[newsletterID]
	out := make([]newsletter.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, newsletter.Recipient{
			Subscriber:   s.subscribers[id],
			Subscription: s.subscriptions[subscriptionKey{newsletterID, id}],
		})
	}
	return out, nil
}

// CreateTrackingRecord stores a new record. Tokens are unique.
func (s *Store) CreateTrackingRecord(_ context.Context, rec *newsletter.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracking[rec.Token]; ok {
		return newsletter.ErrDuplicateToken
	}
	rec.ID = s.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	cp := *rec
	s.tracking[rec.Token] = &cp
	s.trackingOrder = append(s.trackingOrder, rec.Token)
	return nil
}

// ApplyOpen records an open on the record with token.
func (s *Store) ApplyOpen(_ context.Context, token string, o newsletter.Open) (*newsletter.TrackingRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracking[token]
	if !ok {
		return nil, false, newsletter.ErrTrackingRecordNotFound
	}
	first := rec.Apply(o)
	cp := *rec
	return &cp, first, nil
}

// IncrementEditionOpens bumps the open counters of an edition.
func (s *Store) IncrementEditionOpens(_ context.Context, editionID int64, unique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.editions[editionID]
	if !ok {
		return newsletter.ErrEditionNotFound
	}
	e.TotalOpens++
	if unique {
		e.UniqueOpens++
	}
	s.editions[editionID] = e
	return nil
}

// OpenCounts aggregates the tracking records of an edition.
func (s *Store) OpenCounts(_ context.Context, editionID int64) (sent, opened, totalOpens int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.tracking {
		if rec.EditionID != editionID {
			continue
		}
		sent++
		if rec.OpenCount > 0 {
			opened++
		}
		totalOpens += rec.OpenCount
	}
	return sent, opened, totalOpens, nil
}

// TrackingRecords returns the records of an edition in creation order.
func (s *Store) TrackingRecords(_ context.Context, editionID int64) ([]newsletter.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []newsletter.TrackingRecord
	for _, token := range s.trackingOrder {
		if rec := s.tracking[token]; rec.EditionID == editionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func cloneEdition(e newsletter.Edition) newsletter.Edition {
	e.ScheduledFor = cloneTime(e.ScheduledFor)
	e.SentAt = cloneTime(e.SentAt)
	return e
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
