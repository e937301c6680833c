package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/letterpress/internal/tracking"
)

// requireAdmin checks the bearer token against ADMIN_TOKEN in constant time.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	want := []byte(h.config.AdminToken)
	deny := h.handle(func(http.ResponseWriter, *http.Request) error { return ErrUnauthorized })

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), want) != 1 {
			deny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) sendEdition(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}

	res, err := h.editions.SendNow(r.Context(), id, h.config.BaseURL)
	if err != nil {
		return err
	}
	if err := h.stats.Invalidate(context.WithoutCancel(r.Context()), statsKey(id)); err != nil {
		h.logger.WarnContext(r.Context(), "stats cache invalidation failed",
			slog.Int64("edition_id", id), slog.Any("error", err))
	}

	writeJSON(w, http.StatusOK, res)
	return nil
}

type scheduleRequest struct {
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func (h *Handler) scheduleEdition(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}

	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.ScheduledFor == nil {
		return errors.Join(ErrInvalidBody, errors.New("scheduled_for is required"))
	}

	e, err := h.editions.Schedule(r.Context(), id, *req.ScheduledFor)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, e)
	return nil
}

type testRequest struct {
	Email string `json:"email"`
}

func (h *Handler) testEdition(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}

	var req testRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	if err := h.editions.SendTest(r.Context(), id, email, h.config.BaseURL); err != nil {
		if httpErrorFor(err).Code == http.StatusInternalServerError {
			return errors.Join(ErrDeliveryFailed, err)
		}
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent", "email": email})
	return nil
}

func (h *Handler) editionStats(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}

	stats, err := h.stats.Load(r.Context(), statsKey(id), func(ctx context.Context) (tracking.Stats, error) {
		if _, err := h.store.GetEdition(ctx, id); err != nil {
			return tracking.Stats{}, err
		}
		return h.reader.Stats(ctx, id)
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

func (h *Handler) previewEdition(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}

	html, err := h.editions.Preview(r.Context(), id, h.config.BaseURL)
	if err != nil {
		return err
	}
	writeHTML(w, http.StatusOK, html)
	return nil
}
