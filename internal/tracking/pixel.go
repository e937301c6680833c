package tracking

import (
	"encoding/base64"
	"html"
	"strings"

	"github.com/google/uuid"
)

// pixelGIF is a transparent 1x1 GIF, 43 bytes.
var pixelGIF = mustDecode("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// PixelGIF returns a copy of the image served for every pixel request.
func PixelGIF() []byte {
	return append([]byte(nil), pixelGIF...)
}

// NewToken returns a fresh tracking token: 32 lowercase hex characters.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// PixelURL builds the public pixel address for a token.
func PixelURL(token, baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/track/" + token
}

// PixelTag returns the invisible image element that loads pixelURL.
func PixelTag(pixelURL string) string {
	return `<img src="` + html.EscapeString(pixelURL) + `" width="1" height="1" alt="" style="display:none;" />`
}

// EmbedPixel places the pixel tag right before the last closing body tag.
// Documents without one get the tag appended.
func EmbedPixel(doc, pixelURL string) string {
	tag := PixelTag(pixelURL)
	idx := lastIndexFold(doc, "</body>")
	if idx < 0 {
		return doc + tag
	}
	return doc[:idx] + tag + doc[idx:]
}

func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
