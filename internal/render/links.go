package render

import (
	"fmt"
	"net/url"
	"strings"
)

// UnsubscribeURL is the one-click unsubscribe address for a subscriber of a newsletter.
// Test sends use subscriber id 0.
func UnsubscribeURL(baseURL string, subscriberID, newsletterID int64) string {
	return fmt.Sprintf("%s/unsubscribe?sid=%d&nid=%d", strings.TrimRight(baseURL, "/"), subscriberID, newsletterID)
}

// ArticleURL is the web permalink of a legacy article.
func ArticleURL(baseURL string, editionID int64, slug string) string {
	return fmt.Sprintf("%s/edition/%d/article/%s", strings.TrimRight(baseURL, "/"), editionID, url.PathEscape(slug))
}
