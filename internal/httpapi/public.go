package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

//go:embed templates/unsubscribe.html
var pageFS embed.FS

var pageTmpl = template.Must(template.ParseFS(pageFS, "templates/unsubscribe.html"))

type page struct {
	Title       string
	Message     string
	AccentColor string
}

// unsubscribe handles the one-click link from the email footer. Repeating
// the request is harmless and shows the same confirmation.
func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sid, errS := strconv.ParseInt(q.Get("sid"), 10, 64)
	nid, errN := strconv.ParseInt(q.Get("nid"), 10, 64)
	if errS != nil || errN != nil || sid <= 0 || nid <= 0 {
		h.renderPage(w, http.StatusBadRequest, page{
			Title:   "Invalid link",
			Message: "This unsubscribe link is not valid.",
		})
		return
	}

	n, err := h.store.GetNewsletter(r.Context(), nid)
	if err == nil {
		err = h.store.Unsubscribe(r.Context(), sid, nid)
	}

	switch {
	case err == nil:
		h.logger.InfoContext(r.Context(), "subscriber unsubscribed",
			slog.Int64("subscriber_id", sid),
			slog.Int64("newsletter_id", nid))
		h.renderPage(w, http.StatusOK, page{
			Title:       "You are unsubscribed",
			Message:     fmt.Sprintf("You will no longer receive %s.", n.Name),
			AccentColor: n.AccentColor(),
		})
	case errors.Is(err, newsletter.ErrNewsletterNotFound), errors.Is(err, newsletter.ErrSubscriptionNotFound):
		h.renderPage(w, http.StatusNotFound, page{
			Title:   "Subscription not found",
			Message: "We could not find this subscription. It may have been removed.",
		})
	default:
		h.logger.ErrorContext(r.Context(), "unsubscribe failed",
			slog.Int64("subscriber_id", sid),
			slog.Int64("newsletter_id", nid),
			slog.Any("error", err))
		h.renderPage(w, http.StatusInternalServerError, page{
			Title:   "Something went wrong",
			Message: "Please try the link again in a few minutes.",
		})
	}
}

func (h *Handler) renderPage(w http.ResponseWriter, status int, p page) {
	if p.AccentColor == "" {
		p.AccentColor = newsletter.DefaultAccentColor
	}
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		h.logger.Error("render page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, buf.String())
}

type subscribeRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	NewsletterID int64  `json:"newsletter_id"`
}

type subscribeResponse struct {
	SubscriberID int64 `json:"subscriber_id"`
	NewsletterID int64 `json:"newsletter_id"`
	Created      bool  `json:"created"`
}

// subscribe accepts JSON or a url-encoded form so that plain HTML signup
// forms work without scripting.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) error {
	req, err := readSubscribe(w, r)
	if err != nil {
		return err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	n, err := h.store.GetNewsletter(r.Context(), req.NewsletterID)
	if err != nil {
		return err
	}
	if !n.IsActive {
		return ErrInactive
	}

	sub, created, err := h.store.Subscribe(r.Context(), n.ID, email, strings.TrimSpace(req.Name))
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, subscribeResponse{SubscriberID: sub.ID, NewsletterID: n.ID, Created: created})
	return nil
}

func readSubscribe(w http.ResponseWriter, r *http.Request) (subscribeRequest, error) {
	var req subscribeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return req, errors.Join(ErrInvalidBody, err)
	}
	id, err := strconv.ParseInt(r.PostForm.Get("newsletter_id"), 10, 64)
	if err != nil {
		return req, errors.Join(ErrInvalidBody, err)
	}
	req.NewsletterID = id
	req.Email = r.PostForm.Get("email")
	req.Name = r.PostForm.Get("name")
	return req, nil
}

// normalizeEmail accepts a bare address and returns it trimmed and lowercased.
func normalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(s), nil
}
