// Package postgres implements the pipeline stores on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/pkg/db"
)

// Migrations holds the goose migrations for the schema, rooted at MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store reads and writes pipeline entities.
type Store struct {
	pool    *pgxpool.Pool
	now     func() time.Time
	welcome WelcomeHook
}

// WelcomeHook runs inside the Subscribe transaction when a subscription is
// created or reactivated on a newsletter that sends welcome emails. An error
// rolls the subscription back.
type WelcomeHook func(ctx context.Context, tx pgx.Tx, newsletterID int64, sub *newsletter.Subscriber) error

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for timestamps written by the store.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWelcomeHook sets the hook that enqueues welcome emails.
func WithWelcomeHook(h WelcomeHook) Option {
	return func(s *Store) {
		s.welcome = h
	}
}

// New wraps an open pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const newsletterColumns = `id, owner_id, name, description, from_name, from_email, reply_to, logo_url,
	primary_color, send_welcome_email, welcome_email_subject, welcome_email_content, is_active, created_at`

func scanNewsletter(row pgx.Row) (*newsletter.Newsletter, error) {
	var n newsletter.Newsletter
	err := row.Scan(&n.ID, &n.OwnerID, &n.Name, &n.Description, &n.FromName, &n.FromEmail, &n.ReplyTo,
		&n.LogoURL, &n.PrimaryColor, &n.SendWelcomeEmail, &n.WelcomeEmailSubject, &n.WelcomeEmailContent,
		&n.IsActive, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNewsletter inserts n and assigns its id.
func (s *Store) CreateNewsletter(ctx context.Context, n *newsletter.Newsletter) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO newsletters (owner_id, name, description, from_name, from_email, reply_to, logo_url,
			primary_color, send_welcome_email, welcome_email_subject, welcome_email_content, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		n.OwnerID, n.Name, n.Description, n.FromName, n.FromEmail, n.ReplyTo, n.LogoURL,
		n.PrimaryColor, n.SendWelcomeEmail, n.WelcomeEmailSubject, n.WelcomeEmailContent, n.IsActive, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert newsletter: %w", err)
	}
	return nil
}

// GetNewsletter returns newsletter.ErrNewsletterNotFound for unknown ids.
func (s *Store) GetNewsletter(ctx context.Context, id int64) (*newsletter.Newsletter, error) {
	n, err := scanNewsletter(s.pool.QueryRow(ctx, `SELECT `+newsletterColumns+` FROM newsletters WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, newsletter.ErrNewsletterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get newsletter %d: %w", id, err)
	}
	return n, nil
}

const editionColumns = `id, newsletter_id, subject, preview_text, intro_text, template_style, status,
	scheduled_for, sent_at, total_recipients, total_opens, unique_opens, created_at, updated_at`

func scanEdition(row pgx.Row) (*newsletter.Edition, error) {
	var e newsletter.Edition
	err := row.Scan(&e.ID, &e.NewsletterID, &e.Subject, &e.PreviewText, &e.IntroText, &e.TemplateStyle, &e.Status,
		&e.ScheduledFor, &e.SentAt, &e.TotalRecipients, &e.TotalOpens, &e.UniqueOpens, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("edition %d: unknown status %q", e.ID, e.Status)
	}
	return &e, nil
}

// CreateEdition inserts e and assigns its id. Empty status defaults to draft.
func (s *Store) CreateEdition(ctx context.Context, e *newsletter.Edition) error {
	if e.Status == "" {
		e.Status = newsletter.StatusDraft
	}
	if e.TemplateStyle == "" {
		e.TemplateStyle = newsletter.DefaultTemplateStyle
	}
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	err := s.pool.QueryRow(ctx, `
		INSERT INTO editions (newsletter_id, subject, preview_text, intro_text, template_style, status,
			scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		e.NewsletterID, e.Subject, e.PreviewText, e.IntroText, e.TemplateStyle, e.Status, e.ScheduledFor, now,
	).Scan(&e.ID)
	if isForeignKeyViolation(err) {
		return newsletter.ErrNewsletterNotFound
	}
	if err != nil {
		return fmt.Errorf("insert edition: %w", err)
	}
	return nil
}

// GetEdition returns newsletter.ErrEditionNotFound for unknown ids.
func (s *Store) GetEdition(ctx context.Context, id int64) (*newsletter.Edition, error) {
	e, err := scanEdition(s.pool.QueryRow(ctx, `SELECT `+editionColumns+` FROM editions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, newsletter.ErrEditionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get edition %d: %w", id, err)
	}
	return e, nil
}

// UpdateEditionStatus writes the lifecycle fields of e (status, schedule,
// sent time, recipient total) when the stored status is still from. Open
// counters are never touched. A status that moved on in the meantime
// returns newsletter.ErrInvalidTransition.
func (s *Store) UpdateEditionStatus(ctx context.Context, e *newsletter.Edition, from newsletter.EditionStatus) error {
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", newsletter.ErrInvalidTransition, e.Status)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE editions SET
			status = $3, scheduled_for = $4, sent_at = $5, total_recipients = $6, updated_at = $7
		WHERE id = $1 AND status = $2`,
		e.ID, from, e.Status, e.ScheduledFor, e.SentAt, e.TotalRecipients, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update edition %d status: %w", e.ID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current newsletter.EditionStatus
	err = s.pool.QueryRow(ctx, `SELECT status FROM editions WHERE id = $1`, e.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return newsletter.ErrEditionNotFound
	}
	if err != nil {
		return fmt.Errorf("update edition %d status: %w", e.ID, err)
	}
	return fmt.Errorf("%w: edition %d is %s, not %s", newsletter.ErrInvalidTransition, e.ID, current, from)
}

// DueEditions lists scheduled editions whose time has come, oldest first.
func (s *Store) DueEditions(ctx context.Context, now time.Time) ([]newsletter.Edition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+editionColumns+` FROM editions
		WHERE status = 'scheduled' AND scheduled_for <= $1
		ORDER BY scheduled_for, id`, now)
	if err != nil {
		return nil, fmt.Errorf("list due editions: %w", err)
	}
	editions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (newsletter.Edition, error) {
		e, err := scanEdition(row)
		if err != nil {
			return newsletter.Edition{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list due editions: %w", err)
	}
	return editions, nil
}

// AddSection attaches a section to an edition and assigns its id.
func (s *Store) AddSection(ctx context.Context, sec *newsletter.Section) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sections (edition_id, type, title, subtitle, content, image_url, image_caption,
			button_text, button_url, display_order, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		sec.EditionID, sec.Type, sec.Title, sec.Subtitle, sec.Content, sec.ImageURL, sec.ImageCaption,
		sec.ButtonText, sec.ButtonURL, sec.DisplayOrder, sec.IsVisible,
	).Scan(&sec.ID)
	if isForeignKeyViolation(err) {
		return newsletter.ErrEditionNotFound
	}
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

// ListSections returns all sections of an edition in insertion order.
func (s *Store) ListSections(ctx context.Context, editionID int64) ([]newsletter.Section, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, edition_id, type, title, subtitle, content, image_url, image_caption,
			button_text, button_url, display_order, is_visible
		FROM sections WHERE edition_id = $1 ORDER BY id`, editionID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (newsletter.Section, error) {
		var sec newsletter.Section
		err := row.Scan(&sec.ID, &sec.EditionID, &sec.Type, &sec.Title, &sec.Subtitle, &sec.Content,
			&sec.ImageURL, &sec.ImageCaption, &sec.ButtonText, &sec.ButtonURL, &sec.DisplayOrder, &sec.IsVisible)
		return sec, err
	})
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// AddArticle attaches a legacy article to an edition and assigns its id.
func (s *Store) AddArticle(ctx context.Context, a *newsletter.Article) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO articles (edition_id, title, slug, content, excerpt, category, image_url, image_caption,
			display_order, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		a.EditionID, a.Title, a.Slug, a.Content, a.Excerpt, a.Category, a.ImageURL, a.ImageCaption,
		a.DisplayOrder, a.PublishedAt,
	).Scan(&a.ID)
	if isForeignKeyViolation(err) {
		return newsletter.ErrEditionNotFound
	}
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// ListArticles returns the articles of an edition by display order.
func (s *Store) ListArticles(ctx context.Context, editionID int64) ([]newsletter.Article, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, edition_id, title, slug, content, excerpt, category, image_url, image_caption,
			display_order, published_at
		FROM articles WHERE edition_id = $1 ORDER BY display_order, id`, editionID)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	articles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (newsletter.Article, error) {
		var a newsletter.Article
		err := row.Scan(&a.ID, &a.EditionID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &a.Category,
			&a.ImageURL, &a.ImageCaption, &a.DisplayOrder, &a.PublishedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// Subscribe creates the subscriber when the address is new and (re)activates
// its subscription to the newsletter. created reports whether the subscription is new
// or was reactivated. The welcome hook, if set, commits or rolls back with it.
func (s *Store) Subscribe(ctx context.Context, newsletterID int64, email, name string) (*newsletter.Subscriber, bool, error) {
	var (
		sub     newsletter.Subscriber
		created bool
	)
	now := s.now().UTC()

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var sendWelcome bool
		err := tx.QueryRow(ctx, `SELECT send_welcome_email FROM newsletters WHERE id = $1`, newsletterID).Scan(&sendWelcome)
		if errors.Is(err, pgx.ErrNoRows) {
			return newsletter.ErrNewsletterNotFound
		}
		if err != nil {
			return fmt.Errorf("load newsletter %d: %w", newsletterID, err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO subscribers (email, name, status, created_at)
			VALUES ($1, $2, 'active', $3)
			ON CONFLICT ((lower(email))) DO UPDATE SET
				status = CASE WHEN subscribers.status = 'unsubscribed' THEN 'active' ELSE subscribers.status END
			RETURNING id, email, name, status, created_at`,
			strings.TrimSpace(email), name, now,
		).Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert subscriber: %w", err)
		}

		var one int
		err = tx.QueryRow(ctx, `
			INSERT INTO subscriptions (newsletter_id, subscriber_id, status, subscribed_at)
			VALUES ($1, $2, 'subscribed', $3)
			ON CONFLICT (newsletter_id, subscriber_id) DO UPDATE SET
				status = 'subscribed', subscribed_at = EXCLUDED.subscribed_at, unsubscribed_at = NULL
			WHERE subscriptions.status <> 'subscribed'
			RETURNING 1`,
			newsletterID, sub.ID, now,
		).Scan(&one)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created = false
		case err != nil:
			return fmt.Errorf("upsert subscription: %w", err)
		default:
			created = true
		}

		if created && sendWelcome && s.welcome != nil {
			if err := s.welcome(ctx, tx, newsletterID, &sub); err != nil {
				return fmt.Errorf("enqueue welcome: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &sub, created, nil
}

// SetSubscriberStatus changes the global status of a subscriber.
func (s *Store) SetSubscriberStatus(ctx context.Context, subscriberID int64, status newsletter.SubscriberStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE subscribers SET status = $2 WHERE id = $1`, subscriberID, status)
	if err != nil {
		return fmt.Errorf("update subscriber %d: %w", subscriberID, err)
	}
	if tag.RowsAffected() == 0 {
		return newsletter.ErrSubscriberNotFound
	}
	return nil
}

// Unsubscribe marks the subscription unsubscribed. Repeated calls are no-ops.
func (s *Store) Unsubscribe(ctx context.Context, subscriberID, newsletterID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET status = 'unsubscribed', unsubscribed_at = $3
		WHERE newsletter_id = $1 AND subscriber_id = $2 AND status = 'subscribed'`,
		newsletterID, subscriberID, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// nothing updated: already unsubscribed or no such subscription
	var exists bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM subscriptions WHERE newsletter_id = $1 AND subscriber_id = $2)`,
		newsletterID, subscriberID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if !exists {
		return newsletter.ErrSubscriptionNotFound
	}
	return nil
}

// ListRecipients returns the full roster of a newsletter in join order,
// eligible or not.
func (s *Store) ListRecipients(ctx context.Context, newsletterID int64) ([]newsletter.Recipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.email, s.name, s.status, s.created_at,
			ns.newsletter_id, ns.subscriber_id, ns.status, ns.subscribed_at, ns.unsubscribed_at
		FROM subscriptions ns
		JOIN subscribers s ON s.id = ns.subscriber_id
		WHERE ns.newsletter_id = $1
		ORDER BY ns.joined_at, ns.subscriber_id`, newsletterID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (newsletter.Recipient, error) {
		var r newsletter.Recipient
		err := row.Scan(&r.Subscriber.ID, &r.Subscriber.Email, &r.Subscriber.Name, &r.Subscriber.Status,
			&r.Subscriber.CreatedAt, &r.Subscription.NewsletterID, &r.Subscription.SubscriberID,
			&r.Subscription.Status, &r.Subscription.SubscribedAt, &r.Subscription.UnsubscribedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, nil
}

const trackingColumns = `id, edition_id, subscriber_id, token, opened_at, last_opened_at, open_count,
	ip_address, user_agent, created_at`

func scanTracking(row pgx.Row) (*newsletter.TrackingRecord, error) {
	var t newsletter.TrackingRecord
	err := row.Scan(&t.ID, &t.EditionID, &t.SubscriberID, &t.Token, &t.OpenedAt, &t.LastOpenedAt, &t.OpenCount,
		&t.IPAddress, &t.UserAgent, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTrackingRecord inserts a new record. A token collision returns newsletter.ErrDuplicateToken.
func (s *Store) CreateTrackingRecord(ctx context.Context, rec *newsletter.TrackingRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tracking_records (edition_id, subscriber_id, token, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		rec.EditionID, rec.SubscriberID, rec.Token, rec.CreatedAt,
	).Scan(&rec.ID)
	if isUniqueViolation(err) {
		return newsletter.ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("insert tracking record: %w", err)
	}
	return nil
}

// ApplyOpen records an open on the record with token in a single statement,
// so concurrent pixel hits never lose a count.
func (s *Store) ApplyOpen(ctx context.Context, token string, o newsletter.Open) (*newsletter.TrackingRecord, bool, error) {
	rec, err := scanTracking(s.pool.QueryRow(ctx, `
		UPDATE tracking_records SET
			open_count = open_count + 1,
			opened_at = COALESCE(opened_at, $2),
			last_opened_at = $2,
			ip_address = CASE WHEN $3::text = '' THEN ip_address ELSE $3 END,
			user_agent = CASE WHEN $4::text = '' THEN user_agent ELSE $4 END
		WHERE token = $1
		RETURNING `+trackingColumns,
		token, o.At.UTC(), o.IPAddress, o.UserAgent,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, newsletter.ErrTrackingRecordNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("apply open: %w", err)
	}
	return rec, rec.OpenCount == 1, nil
}

// IncrementEditionOpens bumps the open counters of an edition.
func (s *Store) IncrementEditionOpens(ctx context.Context, editionID int64, unique bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE editions SET
			total_opens = total_opens + 1,
			unique_opens = unique_opens + CASE WHEN $2 THEN 1 ELSE 0 END
		WHERE id = $1`, editionID, unique)
	if err != nil {
		return fmt.Errorf("increment edition opens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return newsletter.ErrEditionNotFound
	}
	return nil
}

// OpenCounts aggregates the tracking records of an edition.
func (s *Store) OpenCounts(ctx context.Context, editionID int64) (sent, opened, totalOpens int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE open_count > 0), COALESCE(SUM(open_count), 0)
		FROM tracking_records WHERE edition_id = $1`, editionID,
	).Scan(&sent, &opened, &totalOpens)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("open counts: %w", err)
	}
	return sent, opened, totalOpens, nil
}

// TrackingRecords returns the records of an edition in creation order.
func (s *Store) TrackingRecords(ctx context.Context, editionID int64) ([]newsletter.TrackingRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+trackingColumns+` FROM tracking_records WHERE edition_id = $1 ORDER BY id`, editionID)
	if err != nil {
		return nil, fmt.Errorf("list tracking records: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (newsletter.TrackingRecord, error) {
		t, err := scanTracking(row)
		if err != nil {
			return newsletter.TrackingRecord{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tracking records: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
