package render

import "strings"

// TruncateToWords cuts content to maxWords whitespace-separated words.
// Content within the limit is returned unchanged; longer content is re-joined
// with single spaces and suffixed with "...".
func TruncateToWords(content string, maxWords int) string {
	words := strings.Fields(content)
	if len(words) <= maxWords {
		return content
	}
	if maxWords < 0 {
		maxWords = 0
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
