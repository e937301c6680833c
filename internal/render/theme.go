package render

import (
	"html/template"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

const (
	sansStack  template.CSS = "-apple-system, BlinkMacSystemFont, Segoe UI, Roboto, Helvetica Neue, Arial, sans-serif"
	serifStack template.CSS = "Georgia, Times New Roman, Times, serif"
)

// theme is the set of inline style values a layout and its blocks share.
type theme struct {
	Accent      template.CSS
	Heading     template.CSS
	Text        template.CSS
	Muted       template.CSS
	Surface     template.CSS
	Background  template.CSS
	Border      template.CSS
	Font        template.CSS
	HeadingFont template.CSS
}

// themeFor builds the palette for a style. accent must already be a validated #rrggbb value.
func themeFor(style newsletter.TemplateStyle, accent string) theme {
	a := template.CSS(accent) //nolint:gosec // validated by Newsletter.AccentColor
	switch style {
	case newsletter.StyleMinimalist:
		return theme{
			Accent: a, Heading: "#111111", Text: "#333333", Muted: "#777777",
			Surface: "#ffffff", Background: "#ffffff", Border: "#dddddd",
			Font: serifStack, HeadingFont: serifStack,
		}
	case newsletter.StyleBold:
		return theme{
			Accent: a, Heading: "#ffffff", Text: "#e5e7eb", Muted: "#9ca3af",
			Surface: "#1f2937", Background: "#111827", Border: "#374151",
			Font: sansStack, HeadingFont: sansStack,
		}
	case newsletter.StyleMagazine:
		return theme{
			Accent: a, Heading: "#111827", Text: "#374151", Muted: "#6b7280",
			Surface: "#ffffff", Background: "#f5f5f4", Border: "#e7e5e4",
			Font: sansStack, HeadingFont: serifStack,
		}
	case newsletter.StyleMorningBrew:
	}
	return theme{
		Accent: a, Heading: "#111827", Text: "#374151", Muted: "#6b7280",
		Surface: "#ffffff", Background: "#f3f4f6", Border: "#e5e7eb",
		Font: sansStack, HeadingFont: sansStack,
	}
}

func buttonStyle(accent string) string {
	return "display:inline-block;padding:12px 24px;background-color:" + accent +
		";color:#ffffff;text-decoration:none;border-radius:6px;font-weight:600;"
}
