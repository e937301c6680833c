// Package archive uploads the web version of sent editions to object storage.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/pkg/storage"
)

const cacheControl = "public, max-age=300"

// Archive writes edition HTML under {newsletterID}/editions/{editionID}.html.
type Archive struct {
	store storage.Storage
}

// New creates an Archive on top of store.
func New(store storage.Storage) *Archive {
	return &Archive{store: store}
}

// Key returns the object key for an edition.
func Key(newsletterID, editionID int64) string {
	return fmt.Sprintf("%d/editions/%d.html", newsletterID, editionID)
}

// Archive uploads html for e, replacing any earlier copy.
func (a *Archive) Archive(ctx context.Context, e *newsletter.Edition, html string) error {
	_, err := a.store.Put(ctx, Key(e.NewsletterID, e.ID), strings.NewReader(html), int64(len(html)),
		storage.WithContentType("text/html; charset=utf-8"),
		storage.WithCacheControl(cacheControl),
	)
	return err
}

// URL returns the public address of an archived edition.
func (a *Archive) URL(newsletterID, editionID int64) string {
	return a.store.URL(Key(newsletterID, editionID))
}
