package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

// webEdition serves the browser version of a sent edition. Drafts and
// editions still queued are reported as not found.
func (h *Handler) webEdition(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}

	e, err := h.store.GetEdition(r.Context(), id)
	if err != nil {
		return err
	}
	if e.Status != newsletter.StatusSent {
		return newsletter.ErrEditionNotFound
	}

	html, err := h.editions.Preview(r.Context(), id, h.config.BaseURL)
	if err != nil {
		return err
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeHTML(w, http.StatusOK, html)
	return nil
}

// articleLink resolves the read-more links of legacy articles to the web
// version of their edition.
func (h *Handler) articleLink(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	target := fmt.Sprintf("%s/edition/%d", strings.TrimRight(h.config.BaseURL, "/"), id)
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}
