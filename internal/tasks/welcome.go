package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/letterpress/internal/metrics"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/render"
	"github.com/dmitrymomot/letterpress/pkg/job"
	"github.com/dmitrymomot/letterpress/pkg/mailer"
)

// SendWelcomeName is the job name of the welcome email task.
const SendWelcomeName = "newsletter.send_welcome"

// EmailQueue is the job queue welcome emails run on.
const EmailQueue = "email"

// WelcomeMaxAttempts bounds provider retries for one welcome email.
const WelcomeMaxAttempts = 5

const welcomeTemplate = "welcome.md"

// NewsletterGetter loads the newsletter a subscriber joined.
type NewsletterGetter interface {
	GetNewsletter(ctx context.Context, id int64) (*newsletter.Newsletter, error)
}

// WelcomePayload is enqueued when a subscription is created or reactivated.
type WelcomePayload struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	NewsletterID int64  `json:"newsletter_id"`
	SubscriberID int64  `json:"subscriber_id"`
}

// TxEnqueuer inserts jobs within a database transaction; *job.Manager
// implements it.
type TxEnqueuer interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error
}

// WelcomeUniqueKey identifies the welcome job of one subscription. A
// subscribe, unsubscribe, subscribe cycle reuses the key, so only one
// welcome email goes out while the first job is retained.
func WelcomeUniqueKey(newsletterID, subscriberID int64) string {
	return fmt.Sprintf("welcome:%d:%d", newsletterID, subscriberID)
}

// EnqueueWelcomeTx schedules the welcome email in the subscription's
// transaction.
func EnqueueWelcomeTx(ctx context.Context, q TxEnqueuer, tx pgx.Tx, newsletterID int64, sub *newsletter.Subscriber) error {
	return q.EnqueueTx(ctx, tx, SendWelcomeName, WelcomePayload{
		Email:        sub.Email,
		Name:         sub.Name,
		NewsletterID: newsletterID,
		SubscriberID: sub.ID,
	},
		job.InQueue(EmailQueue),
		job.MaxAttempts(WelcomeMaxAttempts),
		job.UniqueKey(WelcomeUniqueKey(newsletterID, sub.ID)),
	)
}

type welcomeData struct {
	Name           string
	Newsletter     string
	Description    string
	AccentColor    string
	LogoURL        string
	UnsubscribeURL string
	ArchiveURL     string
}

// SendWelcome emails a new subscriber. Tenants may supply their own subject
// and markdown body; otherwise the embedded welcome.md is used.
type SendWelcome struct {
	store   NewsletterGetter
	mailer  *mailer.Mailer
	logger  *slog.Logger
	baseURL string
}

// NewSendWelcome creates the task.
func NewSendWelcome(store NewsletterGetter, m *mailer.Mailer, baseURL string, log *slog.Logger) *SendWelcome {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SendWelcome{
		store:   store,
		mailer:  m,
		logger:  log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name implements the job task contract.
func (t *SendWelcome) Name() string { return SendWelcomeName }

// Handle renders and sends the welcome email.
// A newsletter that is gone, inactive or has welcome emails off is not an error.
func (t *SendWelcome) Handle(ctx context.Context, p WelcomePayload) error {
	n, err := t.store.GetNewsletter(ctx, p.NewsletterID)
	if errors.Is(err, newsletter.ErrNewsletterNotFound) {
		t.logger.WarnContext(ctx, "welcome email skipped: newsletter not found",
			slog.Int64("newsletter_id", p.NewsletterID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load newsletter: %w", err)
	}
	if !n.SendWelcomeEmail || !n.IsActive {
		return nil
	}

	params := mailer.SendParams{
		To:       mailer.Recipient(p.Name, p.Email),
		Template: welcomeTemplate,
		Source:   n.WelcomeEmailContent,
		Subject:  n.WelcomeEmailSubject,
		ReplyTo:  n.ReplyTo,
		Tags:     mailer.Tags{"kind": "welcome"}.With("newsletter_id", n.ID),
		Data: welcomeData{
			Name:           p.Name,
			Newsletter:     n.Name,
			Description:    n.Description,
			AccentColor:    n.AccentColor(),
			LogoURL:        n.LogoURL,
			UnsubscribeURL: render.UnsubscribeURL(t.baseURL, p.SubscriberID, n.ID),
			ArchiveURL:     t.baseURL,
		},
	}
	if n.FromEmail != "" {
		params.From = mailer.Recipient(n.FromName, n.FromEmail)
	}

	if err := t.mailer.Send(ctx, params); err != nil {
		metrics.RecordWelcome(false)
		return err
	}
	metrics.RecordWelcome(true)

	t.logger.InfoContext(ctx, "welcome email sent",
		slog.Int64("newsletter_id", n.ID),
		slog.Int64("subscriber_id", p.SubscriberID))
	return nil
}
