package newsletter

import "errors"

var (
	// ErrNewsletterNotFound is returned when a newsletter lookup finds nothing.
	ErrNewsletterNotFound = errors.New("newsletter: newsletter not found")

	// ErrEditionNotFound is returned when an edition lookup finds nothing.
	ErrEditionNotFound = errors.New("newsletter: edition not found")

	// ErrSubscriberNotFound is returned when a subscriber lookup finds nothing.
	ErrSubscriberNotFound = errors.New("newsletter: subscriber not found")

	// ErrSubscriptionNotFound is returned when no subscription joins the given pair.
	ErrSubscriptionNotFound = errors.New("newsletter: subscription not found")

	// ErrInvalidTransition is returned when an edition status change leaves the legal path.
	ErrInvalidTransition = errors.New("newsletter: invalid edition status transition")

	// ErrScheduleInPast is returned when an edition is scheduled for a time that already passed.
	ErrScheduleInPast = errors.New("newsletter: scheduled time must be in the future")

	// ErrNoRecipients is returned when an edition has no eligible recipients.
	ErrNoRecipients = errors.New("newsletter: no eligible recipients")

	// ErrTrackingRecordNotFound is returned when no tracking record carries the given token.
	ErrTrackingRecordNotFound = errors.New("newsletter: tracking record not found")

	// ErrDuplicateToken is returned when a tracking token collides with an existing record.
	ErrDuplicateToken = errors.New("newsletter: duplicate tracking token")
)
