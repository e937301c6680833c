// Package sanitizer cleans tenant-authored HTML and text before it is placed
// into outgoing email.
package sanitizer

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	emailPolicy  *bluemonday.Policy
	initOnce     sync.Once
)

// inline styles are limited to plain declarations; no url(), expression() or escapes
var safeStyle = regexp.MustCompile(`^[a-zA-Z0-9:;#%,.\-\s]*$`)

func initPolicies() {
	initOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()

		emailPolicy = bluemonday.UGCPolicy()
		emailPolicy.AllowAttrs("style").Matching(safeStyle).OnElements("a", "p", "span", "td", "table", "img")
		emailPolicy.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
		emailPolicy.RequireNoFollowOnLinks(false)
		emailPolicy.AddTargetBlankToFullyQualifiedLinks(true)
	})
}

// SanitizeEmailHTML keeps formatting, links, images and inline styles that are
// safe in an email body. Scripts, event handlers and dangerous URLs are removed.
func SanitizeEmailHTML(s string) string {
	initPolicies()
	return emailPolicy.Sanitize(s)
}

// StripHTML removes all markup and returns plain text with entities decoded,
// ready to be escaped again by html/template.
func StripHTML(s string) string {
	initPolicies()
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

