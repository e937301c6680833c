package newsletter

import (
	"fmt"
	"time"
)

// EditionStatus is the lifecycle state of an edition.
type EditionStatus string

const (
	StatusDraft     EditionStatus = "draft"
	StatusScheduled EditionStatus = "scheduled"
	StatusSending   EditionStatus = "sending"
	StatusSent      EditionStatus = "sent"
	StatusFailed    EditionStatus = "failed"
)

// transitions lists the only legal moves out of each status.
var transitions = map[EditionStatus][]EditionStatus{
	StatusDraft:     {StatusScheduled},
	StatusScheduled: {StatusSending},
	StatusSending:   {StatusSent, StatusFailed},
}

// Valid reports whether s is a known status.
func (s EditionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s EditionStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is on the legal path.
func (s EditionStatus) CanTransitionTo(next EditionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates a status change and returns ErrInvalidTransition when it is not allowed.
func Transition(from, to EditionStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// TemplateStyle names one of the full-document email layouts.
type TemplateStyle string

const (
	StyleMorningBrew TemplateStyle = "morning-brew"
	StyleMinimalist  TemplateStyle = "minimalist"
	StyleBold        TemplateStyle = "bold"
	StyleMagazine    TemplateStyle = "magazine"
)

// DefaultTemplateStyle is used whenever an edition names no style or an unknown one.
const DefaultTemplateStyle = StyleMorningBrew

// Normalize returns s when it names a known style and DefaultTemplateStyle otherwise.
func (s TemplateStyle) Normalize() TemplateStyle {
	switch s {
	case StyleMorningBrew, StyleMinimalist, StyleBold, StyleMagazine:
		return s
	}
	return DefaultTemplateStyle
}

// Edition is one send of a newsletter.
type Edition struct {
	ScheduledFor    *time.Time    `json:"scheduled_for,omitempty"`
	SentAt          *time.Time    `json:"sent_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Subject         string        `json:"subject"`
	PreviewText     string        `json:"preview_text,omitempty"`
	IntroText       string        `json:"intro_text,omitempty"`
	TemplateStyle   TemplateStyle `json:"template_style"`
	Status          EditionStatus `json:"status"`
	ID              int64         `json:"id"`
	NewsletterID    int64         `json:"newsletter_id"`
	TotalRecipients int           `json:"total_recipients"`
	TotalOpens      int           `json:"total_opens"`
	UniqueOpens     int           `json:"unique_opens"`
}

// IsDue reports whether a scheduled edition should be sent at now.
func (e *Edition) IsDue(now time.Time) bool {
	return e.Status == StatusScheduled && e.ScheduledFor != nil && !e.ScheduledFor.After(now)
}

// Schedule moves a draft to scheduled for the given time.
// A time equal to now is accepted so a draft can be sent immediately.
func (e *Edition) Schedule(at, now time.Time) error {
	if err := Transition(e.Status, StatusScheduled); err != nil {
		return err
	}
	if at.Before(now) {
		return ErrScheduleInPast
	}
	at = at.UTC()
	e.Status = StatusScheduled
	e.ScheduledFor = &at
	e.UpdatedAt = now
	return nil
}

// BeginSending claims a scheduled edition for delivery to total recipients.
func (e *Edition) BeginSending(total int, now time.Time) error {
	if err := Transition(e.Status, StatusSending); err != nil {
		return err
	}
	e.Status = StatusSending
	e.TotalRecipients = total
	e.UpdatedAt = now
	return nil
}

// MarkSent completes a send. Partial recipient failures still end here.
func (e *Edition) MarkSent(now time.Time) error {
	if err := Transition(e.Status, StatusSent); err != nil {
		return err
	}
	sentAt := now.UTC()
	e.Status = StatusSent
	e.SentAt = &sentAt
	e.UpdatedAt = now
	return nil
}

// MarkFailed records that a send aborted after it started.
func (e *Edition) MarkFailed(now time.Time) error {
	if err := Transition(e.Status, StatusFailed); err != nil {
		return err
	}
	e.Status = StatusFailed
	e.UpdatedAt = now
	return nil
}
