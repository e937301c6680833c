package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

// Request errors raised by handlers before any domain call.
var (
	ErrInvalidID      = errors.New("invalid id")
	ErrInvalidBody    = errors.New("invalid request body")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInactive       = errors.New("newsletter is not accepting subscribers")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// HTTPError is the JSON error body of the API.
type HTTPError struct {
	// Err is the underlying error; logged, never exposed.
	Err error `json:"-"`

	Message   string `json:"error"`
	ErrorCode string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Code      int    `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

var errorStatus = []struct {
	err     error
	code    int
	errCode string
}{
	{newsletter.ErrNewsletterNotFound, http.StatusNotFound, "not_found"},
	{newsletter.ErrEditionNotFound, http.StatusNotFound, "not_found"},
	{newsletter.ErrSubscriberNotFound, http.StatusNotFound, "not_found"},
	{newsletter.ErrSubscriptionNotFound, http.StatusNotFound, "not_found"},
	{newsletter.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{newsletter.ErrScheduleInPast, http.StatusUnprocessableEntity, "schedule_in_past"},
	{newsletter.ErrNoRecipients, http.StatusUnprocessableEntity, "no_recipients"},
	{ErrInactive, http.StatusUnprocessableEntity, "inactive"},
	{ErrInvalidID, http.StatusBadRequest, "bad_request"},
	{ErrInvalidBody, http.StatusBadRequest, "bad_request"},
	{ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{ErrDeliveryFailed, http.StatusBadGateway, "delivery_failed"},
}

// httpErrorFor maps domain and request sentinels onto status codes. The
// response carries the sentinel text only; wrapped context stays in logs.
// Anything unknown becomes a 500 with a generic message.
func httpErrorFor(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return &HTTPError{
				Err:       err,
				Message:   strings.TrimPrefix(m.err.Error(), "newsletter: "),
				ErrorCode: m.errCode,
				Code:      m.code,
			}
		}
	}

	return &HTTPError{
		Err:       err,
		Message:   http.StatusText(http.StatusInternalServerError),
		ErrorCode: "internal",
		Code:      http.StatusInternalServerError,
	}
}
