package render_test

import (
	"html"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/render"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

func params(style newsletter.TemplateStyle) render.Params {
	return render.Params{
		Now: fixedNow,
		Newsletter: &newsletter.Newsletter{
			ID:           7,
			Name:         "Daily Byte",
			Description:  "Tech news in five minutes",
			PrimaryColor: "#ff0000",
		},
		Edition: &newsletter.Edition{
			ID:            11,
			NewsletterID:  7,
			Subject:       "Issue 12",
			TemplateStyle: style,
			Status:        newsletter.StatusSending,
		},
		TrackingPixelURL: "https://example.com/track/abc123",
		BaseURL:          "https://example.com",
		SubscriberID:     42,
	}
}

func TestRender_RequiresNewsletterAndEdition(t *testing.T) {
	t.Parallel()

	_, err := render.New().Render(render.Params{})
	require.ErrorIs(t, err, render.ErrIncompleteParams)
}

func TestRender_AllStyles(t *testing.T) {
	t.Parallel()

	r := render.New()
	for _, style := range []newsletter.TemplateStyle{
		newsletter.StyleMorningBrew,
		newsletter.StyleMinimalist,
		newsletter.StyleBold,
		newsletter.StyleMagazine,
	} {
		t.Run(string(style), func(t *testing.T) {
			t.Parallel()

			p := params(style)
			p.Sections = []newsletter.Section{
				{ID: 1, Type: newsletter.SectionText, Title: "Top story", Content: "Hello **world**", DisplayOrder: 1, IsVisible: true},
			}

			out, err := r.Render(p)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
			assert.Contains(t, out, "Daily Byte")
			assert.Contains(t, out, "Top story")
			assert.Contains(t, out, "<strong>world</strong>")
			assert.Contains(t, out, "March 14, 2025")
			assert.Contains(t, html.UnescapeString(out), "https://example.com/unsubscribe?sid=42&nid=7")
			assert.Contains(t, out, `<img src="https://example.com/track/abc123" width="1" height="1" alt="" style="display:none;" /></body>`)
		})
	}
}

func TestRender_UnknownStyleFallsBackToMorningBrew(t *testing.T) {
	t.Parallel()

	r := render.New()
	for _, style := range []newsletter.TemplateStyle{"", "neon"} {
		want, err := r.Render(params(newsletter.StyleMorningBrew))
		require.NoError(t, err)

		got, err := r.Render(params(style))
		require.NoError(t, err)
		assert.Equal(t, want, got, "style %q", style)
	}
}

func TestRender_VisibleSectionsInDisplayOrder(t *testing.T) {
	t.Parallel()

	p := params(newsletter.StyleMinimalist)
	p.Sections = []newsletter.Section{
		{ID: 1, Type: newsletter.SectionHeader, Title: "Third block", DisplayOrder: 3, IsVisible: true},
		{ID: 2, Type: newsletter.SectionHeader, Title: "First block", DisplayOrder: 1, IsVisible: true},
		{ID: 3, Type: newsletter.SectionHeader, Title: "Hidden block", DisplayOrder: 0, IsVisible: false},
		{ID: 4, Type: newsletter.SectionHeader, Title: "Second block", DisplayOrder: 2, IsVisible: true},
	}

	out, err := render.New().Render(p)
	require.NoError(t, err)

	first := strings.Index(out, "First block")
	second := strings.Index(out, "Second block")
	third := strings.Index(out, "Third block")
	require.Positive(t, first)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.NotContains(t, out, "Hidden block")
}

func TestRender_SectionTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		section  newsletter.Section
		contains []string
		absent   []string
	}{
		{
			name:     "header",
			section:  newsletter.Section{Type: newsletter.SectionHeader, Title: "Big news", Subtitle: "Read on"},
			contains: []string{"<h1", "Big news", "Read on"},
		},
		{
			name:     "list renders markdown",
			section:  newsletter.Section{Type: newsletter.SectionList, Title: "Links", Content: "- one\n- two\n"},
			contains: []string{"<h3", "<li>one</li>", "<li>two</li>"},
		},
		{
			name:     "article with image",
			section:  newsletter.Section{Type: newsletter.SectionArticle, Title: "Deep dive", Content: "Body text", ImageURL: "https://cdn.example.com/a.png", ImageCaption: "A chart"},
			contains: []string{"Deep dive", `src="https://cdn.example.com/a.png"`, "A chart", "Body text"},
		},
		{
			name:     "quote is escaped text",
			section:  newsletter.Section{Type: newsletter.SectionQuote, Content: "Stay <b>curious</b>"},
			contains: []string{"border-left: 4px solid #ff0000", "Stay &lt;b&gt;curious&lt;/b&gt;"},
		},
		{
			name:     "image",
			section:  newsletter.Section{Type: newsletter.SectionImage, ImageURL: "https://cdn.example.com/hero.png", ImageCaption: "Hero shot"},
			contains: []string{`src="https://cdn.example.com/hero.png"`, "Hero shot"},
		},
		{
			name:    "image without url renders nothing",
			section: newsletter.Section{Type: newsletter.SectionImage, ImageCaption: "Orphan caption"},
			absent:  []string{"Orphan caption"},
		},
		{
			name:     "cta with button",
			section:  newsletter.Section{Type: newsletter.SectionCTA, Content: "Like what you read?", ButtonText: "Share it", ButtonURL: "https://example.com/share"},
			contains: []string{"Like what you read?", `href="https://example.com/share"`, "Share it"},
		},
		{
			name:    "cta button needs url",
			section: newsletter.Section{Type: newsletter.SectionCTA, Content: "No link", ButtonText: "Dangling"},
			absent:  []string{"Dangling"},
		},
		{
			name:    "code renders nothing",
			section: newsletter.Section{Type: newsletter.SectionCode, Title: "Snippet title", Content: "fmt.Println(42)"},
			absent:  []string{"Snippet title", "fmt.Println"},
		},
		{
			name:    "video renders nothing",
			section: newsletter.Section{Type: newsletter.SectionVideo, Title: "Watch this", Content: "https://video.example.com/v"},
			absent:  []string{"Watch this", "video.example.com"},
		},
		{
			name:    "unknown type renders nothing",
			section: newsletter.Section{Type: "poll", Title: "Vote now"},
			absent:  []string{"Vote now"},
		},
		{
			name:     "markdown button uses accent",
			section:  newsletter.Section{Type: newsletter.SectionText, Content: "[!button|Join us](https://example.com/join)"},
			contains: []string{"Join us", "background-color:#ff0000"},
		},
		{
			name:    "markdown strips scripts",
			section: newsletter.Section{Type: newsletter.SectionText, Content: "Hi <script>alert(1)</script>"},
			absent:  []string{"<script>"},
		},
	}

	r := render.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := params(newsletter.StyleMorningBrew)
			tt.section.IsVisible = true
			p.Sections = []newsletter.Section{tt.section}

			out, err := r.Render(p)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestRender_SectionsTakePrecedenceOverArticles(t *testing.T) {
	t.Parallel()

	p := params(newsletter.StyleMorningBrew)
	p.Sections = []newsletter.Section{{Type: newsletter.SectionText, Content: "From sections", IsVisible: true}}
	p.Articles = []newsletter.Article{{Title: "Legacy title", Slug: "legacy", Content: "Legacy body"}}

	out, err := render.New().Render(p)
	require.NoError(t, err)
	assert.Contains(t, out, "From sections")
	assert.NotContains(t, out, "Legacy title")
}

func TestRender_LegacyArticles(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	p := params(newsletter.StyleBold)
	p.Articles = []newsletter.Article{
		{ID: 2, Title: "Second", Slug: "second-post", Content: "short", DisplayOrder: 2},
		{ID: 1, Title: "Hello World", Category: "Markets", Content: "<p>" + long + "</p>", DisplayOrder: 1},
	}

	out, err := render.New().Render(p)
	require.NoError(t, err)

	assert.Contains(t, out, `href="https://example.com/edition/11/article/hello-world"`)
	assert.Contains(t, out, `href="https://example.com/edition/11/article/second-post"`)
	assert.Contains(t, out, "Markets")
	assert.Contains(t, out, strings.TrimSpace(strings.Repeat("word ", 150))+"...")
	assert.NotContains(t, out, "<p>word")
	assert.Less(t, strings.Index(out, "Hello World"), strings.Index(out, "Second"))
}

func TestRender_MagazineFeaturesFirstArticle(t *testing.T) {
	t.Parallel()

	p := params(newsletter.StyleMagazine)
	p.Articles = []newsletter.Article{
		{Title: "Lead story", Slug: "lead", Content: "lead", DisplayOrder: 1},
		{Title: "Second story", Slug: "two", Content: "two", DisplayOrder: 2},
		{Title: "Third story", Slug: "three", Content: "three", DisplayOrder: 3},
		{Title: "Fourth story", Slug: "four", Content: "four", DisplayOrder: 4},
	}

	out, err := render.New().Render(p)
	require.NoError(t, err)

	featured := strings.Index(out, `class="featured"`)
	require.Positive(t, featured)
	assert.Equal(t, 1, strings.Count(out, `class="featured"`))
	assert.Equal(t, 3, strings.Count(out, `class="column"`))
	assert.Less(t, featured, strings.Index(out, "Lead story"))
	assert.Less(t, strings.Index(out, "Lead story"), strings.Index(out, `class="column"`))
}

func TestRender_WithoutPixel(t *testing.T) {
	t.Parallel()

	p := params(newsletter.StyleMorningBrew)
	p.TrackingPixelURL = ""

	out, err := render.New().Render(p)
	require.NoError(t, err)
	assert.NotContains(t, out, "/track/")
	assert.True(t, strings.HasSuffix(out, "</html>\n"))
}

func TestRender_UsesClockWhenNowIsZero(t *testing.T) {
	t.Parallel()

	r := render.New(render.WithClock(func() time.Time {
		return time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	}))
	p := params(newsletter.StyleMinimalist)
	p.Now = time.Time{}

	out, err := r.Render(p)
	require.NoError(t, err)
	assert.Contains(t, out, "December 1, 2024")
}

func TestRender_InvalidAccentFallsBack(t *testing.T) {
	t.Parallel()

	p := params(newsletter.StyleMorningBrew)
	p.Newsletter.PrimaryColor = "red; background:url(x)"

	out, err := render.New().Render(p)
	require.NoError(t, err)
	assert.Contains(t, out, newsletter.DefaultAccentColor)
	assert.NotContains(t, out, "url(x)")
}
