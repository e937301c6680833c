package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/letterpress/internal/metrics"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/render"
	"github.com/dmitrymomot/letterpress/internal/tracking"
	"github.com/dmitrymomot/letterpress/pkg/mailer"
)

// TestSubjectPrefix marks test sends.
const TestSubjectPrefix = "[TEST] "

const tokenAttempts = 3

// Store is the persistence the sender needs.
type Store interface {
	GetEdition(ctx context.Context, id int64) (*newsletter.Edition, error)
	GetNewsletter(ctx context.Context, id int64) (*newsletter.Newsletter, error)
	// UpdateEditionStatus persists the lifecycle fields of e if the stored
	// status is still from. It never writes the open counters.
	UpdateEditionStatus(ctx context.Context, e *newsletter.Edition, from newsletter.EditionStatus) error
	// ListRecipients returns the whole roster; eligibility is decided by the Service.
	ListRecipients(ctx context.Context, newsletterID int64) ([]newsletter.Recipient, error)
	ListSections(ctx context.Context, editionID int64) ([]newsletter.Section, error)
	ListArticles(ctx context.Context, editionID int64) ([]newsletter.Article, error)
	CreateTrackingRecord(ctx context.Context, rec *newsletter.TrackingRecord) error
}

// Renderer renders one document.
type Renderer interface {
	Render(p render.Params) (string, error)
}

// Archiver stores the public web version of a sent edition.
type Archiver interface {
	Archive(ctx context.Context, e *newsletter.Edition, html string) error
}

// Result aggregates a fan-out. Errors is ordered like the roster.
type Result struct {
	Errors []string `json:"errors"`
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
}

// Service sends editions.
type Service struct {
	store       Store
	mail        mailer.Sender
	renderer    Renderer
	archiver    Archiver
	limiter     *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

// New creates a Service delivering through mail.
func New(store Store, mail mailer.Sender, renderer Renderer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		mail:        mail,
		renderer:    renderer,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSec), DefaultBurst),
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// content is what every recipient of an edition gets rendered from.
type content struct {
	newsletter *newsletter.Newsletter
	edition    *newsletter.Edition
	sections   []newsletter.Section
	articles   []newsletter.Article
}

// Send delivers a scheduled edition to every eligible recipient.
//
// Lookup failures, an edition that cannot move to sending and an empty
// recipient list are returned before anything is written. Once the edition
// is marked sending the delivery runs to completion even if ctx is cancelled.
func (s *Service) Send(ctx context.Context, editionID int64, baseURL string) (*Result, error) {
	return s.send(ctx, editionID, baseURL, false)
}

// SendNow sends a draft or scheduled edition immediately. A draft passes
// through scheduled(now) in memory and is persisted once, as sending.
func (s *Service) SendNow(ctx context.Context, editionID int64, baseURL string) (*Result, error) {
	return s.send(ctx, editionID, baseURL, true)
}

func (s *Service) send(ctx context.Context, editionID int64, baseURL string, immediate bool) (*Result, error) {
	e, n, err := s.load(ctx, editionID)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: edition %d is already %s", newsletter.ErrInvalidTransition, e.ID, e.Status)
	}

	from := e.Status
	started := s.now()
	if immediate && e.Status == newsletter.StatusDraft {
		if err := e.Schedule(started, started); err != nil {
			return nil, err
		}
	}
	if err := newsletter.Transition(e.Status, newsletter.StatusSending); err != nil {
		return nil, err
	}

	roster, err := s.store.ListRecipients(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("list recipients of newsletter %d: %w", n.ID, err)
	}
	recipients := newsletter.EligibleRecipients(roster)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("edition %d: %w", e.ID, newsletter.ErrNoRecipients)
	}

	if err := e.BeginSending(len(recipients), started); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEditionStatus(ctx, e, from); err != nil {
		return nil, fmt.Errorf("mark edition %d sending: %w", e.ID, err)
	}

	// the edition is claimed; the rest must not depend on the caller
	ctx = context.WithoutCancel(ctx)

	log := s.logger.With(
		slog.Int64("edition_id", e.ID),
		slog.Int64("newsletter_id", n.ID),
	)
	log.InfoContext(ctx, "edition send started", slog.Int("recipients", len(recipients)))

	c, err := s.loadContent(ctx, n, e)
	if err != nil {
		return nil, s.fail(ctx, e, started, err)
	}

	res := s.fanOut(ctx, c, recipients, baseURL)

	done := *e
	if err := done.MarkSent(s.now()); err != nil {
		return res, s.fail(ctx, e, started, err)
	}
	if err := s.store.UpdateEditionStatus(ctx, &done, newsletter.StatusSending); err != nil {
		return res, s.fail(ctx, e, started, fmt.Errorf("mark edition %d sent: %w", e.ID, err))
	}
	*e = done

	metrics.RecordEditionSend(string(newsletter.StatusSent), s.now().Sub(started))
	log.InfoContext(ctx, "edition sent",
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)

	if s.archiver != nil {
		s.archive(ctx, log, c, baseURL)
	}
	return res, nil
}

// Schedule moves a draft edition to scheduled for at.
func (s *Service) Schedule(ctx context.Context, editionID int64, at time.Time) (*newsletter.Edition, error) {
	e, err := s.store.GetEdition(ctx, editionID)
	if err != nil {
		return nil, fmt.Errorf("load edition %d: %w", editionID, err)
	}
	from := e.Status
	if err := e.Schedule(at, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEditionStatus(ctx, e, from); err != nil {
		return nil, fmt.Errorf("schedule edition %d: %w", e.ID, err)
	}
	return e, nil
}

// SendTest renders the edition for an ad-hoc address. Nothing is persisted and
// the edition is never mutated. The pixel token is fresh and resolves to no
// tracking record. Provider errors are returned unwrapped.
func (s *Service) SendTest(ctx context.Context, editionID int64, to, baseURL string) error {
	e, n, err := s.load(ctx, editionID)
	if err != nil {
		return err
	}
	c, err := s.loadContent(ctx, n, e)
	if err != nil {
		return err
	}

	html, err := s.renderer.Render(c.params(baseURL, tracking.PixelURL(tracking.NewToken(), baseURL), 0, s.now()))
	if err != nil {
		return fmt.Errorf("render test email: %w", err)
	}
	return s.mail.Send(ctx, message(c, to, TestSubjectPrefix+e.Subject, html, render.UnsubscribeURL(baseURL, 0, n.ID)))
}

// Preview renders the public web version: subscriber 0 and no pixel.
func (s *Service) Preview(ctx context.Context, editionID int64, baseURL string) (string, error) {
	e, n, err := s.load(ctx, editionID)
	if err != nil {
		return "", err
	}
	c, err := s.loadContent(ctx, n, e)
	if err != nil {
		return "", err
	}
	return s.renderer.Render(c.params(baseURL, "", 0, s.now()))
}

func (s *Service) load(ctx context.Context, editionID int64) (*newsletter.Edition, *newsletter.Newsletter, error) {
	e, err := s.store.GetEdition(ctx, editionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load edition %d: %w", editionID, err)
	}
	n, err := s.store.GetNewsletter(ctx, e.NewsletterID)
	if err != nil {
		return nil, nil, fmt.Errorf("load newsletter %d: %w", e.NewsletterID, err)
	}
	return e, n, nil
}

// loadContent reads the sections once per send; legacy articles are read only
// when the edition has no sections.
func (s *Service) loadContent(ctx context.Context, n *newsletter.Newsletter, e *newsletter.Edition) (content, error) {
	c := content{newsletter: n, edition: e}
	sections, err := s.store.ListSections(ctx, e.ID)
	if err != nil {
		return c, fmt.Errorf("list sections of edition %d: %w", e.ID, err)
	}
	c.sections = sections
	if len(sections) > 0 {
		return c, nil
	}
	articles, err := s.store.ListArticles(ctx, e.ID)
	if err != nil {
		return c, fmt.Errorf("list articles of edition %d: %w", e.ID, err)
	}
	c.articles = articles
	return c, nil
}

// fanOut never aborts: a recipient that cannot get a send slot is counted
// as failed like any provider error.
func (s *Service) fanOut(ctx context.Context, c content, recipients []newsletter.Recipient, baseURL string) *Result {
	errs := make([]error, len(recipients))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				errs[i] = fmt.Errorf("wait for send slot: %w", err)
			} else {
				errs[i] = s.deliver(ctx, c, r.Subscriber, baseURL)
			}
			metrics.RecordEmail(errs[i] == nil)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Errors: []string{}}
	for i, err := range errs {
		if err == nil {
			res.Sent++
			continue
		}
		email := recipients[i].Subscriber.Email
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("failed to send to %s: %v", email, err))
		s.logger.WarnContext(ctx, "recipient send failed",
			slog.Int64("edition_id", c.edition.ID),
			slog.Int64("subscriber_id", recipients[i].Subscriber.ID),
			slog.String("email", email),
			slog.Any("error", err),
		)
	}
	return res
}

// deliver handles one recipient. The tracking record is created before the
// provider call so it exists whatever the outcome.
func (s *Service) deliver(ctx context.Context, c content, sub newsletter.Subscriber, baseURL string) error {
	rec, err := s.createTrackingRecord(ctx, c.edition.ID, sub.ID)
	if err != nil {
		return err
	}

	html, err := s.renderer.Render(c.params(baseURL, tracking.PixelURL(rec.Token, baseURL), sub.ID, s.now()))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	unsubscribe := render.UnsubscribeURL(baseURL, sub.ID, c.newsletter.ID)
	return s.mail.Send(ctx, message(c, sub.Email, c.edition.Subject, html, unsubscribe))
}

func (s *Service) createTrackingRecord(ctx context.Context, editionID, subscriberID int64) (*newsletter.TrackingRecord, error) {
	var err error
	for range tokenAttempts {
		rec := &newsletter.TrackingRecord{
			Token:        tracking.NewToken(),
			EditionID:    editionID,
			SubscriberID: subscriberID,
			CreatedAt:    s.now(),
		}
		err = s.store.CreateTrackingRecord(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, newsletter.ErrDuplicateToken) {
			break
		}
	}
	return nil, fmt.Errorf("create tracking record: %w", err)
}

// fail moves a sending edition to failed and returns cause.
func (s *Service) fail(ctx context.Context, e *newsletter.Edition, started time.Time, cause error) error {
	metrics.RecordEditionSend(string(newsletter.StatusFailed), s.now().Sub(started))
	s.logger.ErrorContext(ctx, "edition send failed",
		slog.Int64("edition_id", e.ID),
		slog.Any("error", cause),
	)

	if err := e.MarkFailed(s.now()); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.store.UpdateEditionStatus(ctx, e, newsletter.StatusSending); err != nil {
		return errors.Join(cause, fmt.Errorf("mark edition %d failed: %w", e.ID, err))
	}
	return cause
}

func (s *Service) archive(ctx context.Context, log *slog.Logger, c content, baseURL string) {
	html, err := s.renderer.Render(c.params(baseURL, "", 0, s.now()))
	if err == nil {
		err = s.archiver.Archive(ctx, c.edition, html)
	}
	if err != nil {
		log.WarnContext(ctx, "failed to archive edition", slog.Any("error", err))
	}
}

func (c content) params(baseURL, pixelURL string, subscriberID int64, now time.Time) render.Params {
	return render.Params{
		Now:              now,
		Newsletter:       c.newsletter,
		Edition:          c.edition,
		Sections:         c.sections,
		Articles:         c.articles,
		TrackingPixelURL: pixelURL,
		BaseURL:          baseURL,
		SubscriberID:     subscriberID,
	}
}

func message(c content, to, subject, html, unsubscribeURL string) *mailer.Email {
	n := c.newsletter
	email := &mailer.Email{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		ReplyTo: n.ReplyTo,
		Headers: map[string]string{"List-Unsubscribe": "<" + unsubscribeURL + ">"},
		Tags: mailer.Tags{}.
			With("newsletter_id", n.ID).
			With("edition_id", c.edition.ID),
	}
	if n.FromEmail != "" {
		email.From = mailer.Recipient(n.FromName, n.FromEmail)
	}
	if email.ReplyTo == "" {
		email.ReplyTo = n.FromEmail
	}
	return email
}
