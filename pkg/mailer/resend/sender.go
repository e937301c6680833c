package resend

import (
	"context"
	"fmt"
	"slices"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/letterpress/pkg/mailer"
)

// Sender implements mailer.Sender on top of the Resend API.
type Sender struct {
	client *resend.Client
	config Config
}

// New creates a Sender with its own Resend client.
func New(cfg Config) *Sender {
	return NewWithClient(resend.NewClient(cfg.APIKey), cfg)
}

// NewWithClient wraps an existing Resend client.
func NewWithClient(client *resend.Client, cfg Config) *Sender {
	return &Sender{client: client, config: cfg}
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	if err := email.Validate(); err != nil {
		return err
	}

	if _, err := s.client.Emails.SendWithContext(ctx, s.request(email)); err != nil {
		return fmt.Errorf("resend: failed to send email to %s: %w", email.To[0], err)
	}
	return nil
}

func (s *Sender) request(email *mailer.Email) *resend.SendEmailRequest {
	from := email.From
	if from == "" {
		from = mailer.Recipient(s.config.SenderName, s.config.SenderEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Headers: email.Headers,
	}

	if len(email.Tags) > 0 {
		names := make([]string, 0, len(email.Tags))
		for name := range email.Tags {
			names = append(names, name)
		}
		slices.Sort(names)
		req.Tags = make([]resend.Tag, 0, len(names))
		for _, name := range names {
			req.Tags = append(req.Tags, resend.Tag{Name: name, Value: email.Tags[name]})
		}
	}

	return req
}
