package mailer

import (
	"bytes"
	"context"
	"errors"
	texttemplate "text/template"
)

// Mailer renders templates and hands the result to a Sender.
type Mailer struct {
	sender   Sender
	renderer *Renderer
	config   Config
}

// New creates a Mailer.
func New(sender Sender, renderer *Renderer, cfg Config) *Mailer {
	return &Mailer{sender: sender, renderer: renderer, config: cfg}
}

// SendParams describes one templated message.
// Exactly one of Template (a file name) or Source (inline markdown) is used;
// Source wins when both are set.
type SendParams struct {
	Data     any
	Tags     Tags
	To       string
	Template string
	Source   string
	Subject  string
	Layout   string
	From     string
	ReplyTo  string
}

// Send renders and delivers a message.
func (m *Mailer) Send(ctx context.Context, p SendParams) error {
	if p.To == "" {
		return ErrNoRecipient
	}

	layout := p.Layout
	if layout == "" {
		layout = m.config.DefaultLayout
	}

	var (
		res *RenderResult
		err error
	)
	if p.Source != "" {
		res, err = m.renderer.RenderString(layout, p.Source, p.Data)
	} else {
		res, err = m.renderer.Render(layout, p.Template, p.Data)
	}
	if err != nil {
		return errors.Join(ErrRenderFailed, err)
	}

	subject := p.Subject
	if subject == "" {
		if s, ok := (&Template{Metadata: res.Metadata}).Subject(); ok {
			subject = s
		} else {
			subject = m.config.FallbackSubject
		}
	}
	subject, err = executeSubject(subject, p.Data)
	if err != nil {
		return errors.Join(ErrRenderFailed, err)
	}

	return m.SendRaw(ctx, &Email{
		To:      []string{p.To},
		Subject: subject,
		HTML:    res.HTML,
		Text:    res.Text,
		From:    p.From,
		ReplyTo: p.ReplyTo,
		Tags:    p.Tags,
	})
}

// SendRaw validates and delivers a prepared message.
func (m *Mailer) SendRaw(ctx context.Context, email *Email) error {
	if err := email.Validate(); err != nil {
		return err
	}
	if err := m.sender.Send(ctx, email); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}

func executeSubject(subject string, data any) (string, error) {
	tmpl, err := texttemplate.New("subject").Parse(subject)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
