package newsletter

import (
	"regexp"
	"time"
)

// DefaultAccentColor is the brand color used when a newsletter sets none.
const DefaultAccentColor = "#3b82f6"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Newsletter is a tenant-owned publication.
type Newsletter struct {
	CreatedAt           time.Time `json:"created_at"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	FromName            string    `json:"from_name,omitempty"`
	FromEmail           string    `json:"from_email,omitempty"`
	ReplyTo             string    `json:"reply_to,omitempty"`
	LogoURL             string    `json:"logo_url,omitempty"`
	PrimaryColor        string    `json:"primary_color,omitempty"`
	WelcomeEmailSubject string    `json:"welcome_email_subject,omitempty"`
	WelcomeEmailContent string    `json:"welcome_email_content,omitempty"`
	ID                  int64     `json:"id"`
	OwnerID             int64     `json:"owner_id"`
	SendWelcomeEmail    bool      `json:"send_welcome_email"`
	IsActive            bool      `json:"is_active"`
}

// AccentColor returns the configured color when it is a #rrggbb value, else DefaultAccentColor.
func (n *Newsletter) AccentColor() string {
	if hexColor.MatchString(n.PrimaryColor) {
		return n.PrimaryColor
	}
	return DefaultAccentColor
}

// SubscriberStatus is the global state of a subscriber identity.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberBounced      SubscriberStatus = "bounced"
)

// Subscriber is a global recipient identity.
type Subscriber struct {
	CreatedAt time.Time        `json:"created_at"`
	Email     string           `json:"email"`
	Name      string           `json:"name,omitempty"`
	Status    SubscriberStatus `json:"status"`
	ID        int64            `json:"id"`
}

// SubscriptionStatus is the state of a newsletter/subscriber join.
type SubscriptionStatus string

const (
	Subscribed   SubscriptionStatus = "subscribed"
	Unsubscribed SubscriptionStatus = "unsubscribed"
)

// Subscription joins a subscriber to a newsletter.
type Subscription struct {
	SubscribedAt   time.Time          `json:"subscribed_at"`
	UnsubscribedAt *time.Time         `json:"unsubscribed_at,omitempty"`
	Status         SubscriptionStatus `json:"status"`
	NewsletterID   int64              `json:"newsletter_id"`
	SubscriberID   int64              `json:"subscriber_id"`
}

// Recipient is one row of a newsletter roster.
type Recipient struct {
	Subscriber   Subscriber
	Subscription Subscription
}

// Eligible reports whether the recipient should receive a send.
func (r Recipient) Eligible() bool {
	return r.Subscriber.Status == SubscriberActive && r.Subscription.Status == Subscribed
}

// EligibleRecipients filters a roster down to recipients that receive a send, keeping roster order.
func EligibleRecipients(roster []Recipient) []Recipient {
	out := make([]Recipient, 0, len(roster))
	for _, r := range roster {
		if r.Eligible() {
			out = append(out, r)
		}
	}
	return out
}

// TrackingRecord correlates a pixel request to one edition and subscriber.
type TrackingRecord struct {
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	LastOpenedAt *time.Time `json:"last_opened_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Token        string     `json:"token"`
	IPAddress    string     `json:"ip_address,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	ID           int64      `json:"id"`
	EditionID    int64      `json:"edition_id"`
	SubscriberID int64      `json:"subscriber_id"`
	OpenCount    int        `json:"open_count"`
}

// Open is a single pixel hit.
type Open struct {
	At        time.Time
	IPAddress string
	UserAgent string
}

// Apply records an open on the tracking record and reports whether it was the first.
// The first-open timestamp is sticky, the last-open timestamp always moves, and
// client details are overwritten only when present.
func (t *TrackingRecord) Apply(o Open) bool {
	first := t.OpenedAt == nil
	at := o.At.UTC()
	t.OpenCount++
	if first {
		t.OpenedAt = &at
	}
	t.LastOpenedAt = &at
	if o.IPAddress != "" {
		t.IPAddress = o.IPAddress
	}
	if o.UserAgent != "" {
		t.UserAgent = o.UserAgent
	}
	return first
}
