package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/tracking"
	"github.com/dmitrymomot/letterpress/pkg/mailer"
	"github.com/dmitrymomot/letterpress/pkg/sanitizer"
	"github.com/dmitrymomot/letterpress/pkg/slug"
)

// ArticleWordLimit is how many words of a legacy article appear in the email.
const ArticleWordLimit = 150

//go:embed templates
var templatesFS embed.FS

var styles = []newsletter.TemplateStyle{
	newsletter.StyleMorningBrew,
	newsletter.StyleMinimalist,
	newsletter.StyleBold,
	newsletter.StyleMagazine,
}

// Params is everything one rendered document depends on.
type Params struct {
	Now              time.Time // zero means the renderer clock
	Newsletter       *newsletter.Newsletter
	Edition          *newsletter.Edition
	TrackingPixelURL string // empty renders no pixel
	BaseURL          string
	Articles         []newsletter.Article
	Sections         []newsletter.Section
	SubscriberID     int64
}

// Renderer renders edition documents. It is safe for concurrent use.
type Renderer struct {
	layouts  map[newsletter.TemplateStyle]*template.Template
	markdown sync.Map // accent color -> goldmark.Markdown
	now      func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the clock used for the edition date when Params.Now is zero.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New parses the embedded layouts. It panics if they are malformed.
func New(opts ...Option) *Renderer {
	blocks := template.Must(template.New("blocks").ParseFS(templatesFS, "templates/blocks.html"))

	r := &Renderer{
		layouts: make(map[newsletter.TemplateStyle]*template.Template, len(styles)),
		now:     time.Now,
	}
	for _, style := range styles {
		t := template.Must(blocks.Clone())
		r.layouts[style] = template.Must(t.ParseFS(templatesFS, "templates/layouts/"+string(style)+".html"))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type documentView struct {
	Newsletter     *newsletter.Newsletter
	Edition        *newsletter.Edition
	Featured       *articleView
	Intro          template.HTML
	Theme          theme
	Date           string
	BaseURL        string
	UnsubscribeURL string
	Blocks         []template.HTML
	Articles       []articleView
	Rows           [][]articleView
	Year           int
}

type articleView struct {
	Theme        theme
	Category     string
	Title        string
	URL          string
	Body         string
	ImageURL     string
	ImageCaption string
}

type blockView struct {
	Section newsletter.Section
	Body    template.HTML
	Theme   theme
}

// Render produces the complete HTML document for one recipient.
func (r *Renderer) Render(p Params) (string, error) {
	if p.Newsletter == nil || p.Edition == nil {
		return "", ErrIncompleteParams
	}

	style := p.Edition.TemplateStyle.Normalize()
	accent := p.Newsletter.AccentColor()
	now := p.Now
	if now.IsZero() {
		now = r.now()
	}

	doc := documentView{
		Newsletter:     p.Newsletter,
		Edition:        p.Edition,
		Theme:          themeFor(style, accent),
		Date:           now.Format("January 2, 2006"),
		Year:           now.Year(),
		BaseURL:        strings.TrimRight(p.BaseURL, "/"),
		UnsubscribeURL: UnsubscribeURL(p.BaseURL, p.SubscriberID, p.Newsletter.ID),
	}

	intro, err := r.renderMarkdown(p.Edition.IntroText, accent)
	if err != nil {
		return "", err
	}
	doc.Intro = intro

	if len(p.Sections) > 0 {
		for _, s := range newsletter.VisibleSections(p.Sections) {
			block, err := r.renderSection(style, s, doc.Theme, accent)
			if err != nil {
				return "", err
			}
			if block != "" {
				doc.Blocks = append(doc.Blocks, block)
			}
		}
	} else {
		doc.Articles = articleViews(p, doc.Theme)
		if style == newsletter.StyleMagazine && len(doc.Articles) > 0 {
			doc.Featured = &doc.Articles[0]
			doc.Rows = pairs(doc.Articles[1:])
		}
	}

	var buf bytes.Buffer
	if err := r.layouts[style].ExecuteTemplate(&buf, string(style)+".html", doc); err != nil {
		return "", fmt.Errorf("%w: layout %s: %v", ErrRenderFailed, style, err)
	}

	out := buf.String()
	if p.TrackingPixelURL != "" {
		out = tracking.EmbedPixel(out, p.TrackingPixelURL)
	}
	return out, nil
}

// renderSection dispatches on the closed set of section types.
// Code and video blocks are part of the editor model but have no email markup.
func (r *Renderer) renderSection(style newsletter.TemplateStyle, s newsletter.Section, th theme, accent string) (template.HTML, error) {
	view := blockView{Section: s, Theme: th}

	var name string
	switch s.Type {
	case newsletter.SectionHeader:
		name = "section_header"
	case newsletter.SectionText, newsletter.SectionArticle, newsletter.SectionList:
		name = "section_" + string(s.Type)
		body, err := r.renderMarkdown(s.Content, accent)
		if err != nil {
			return "", err
		}
		view.Body = body
	case newsletter.SectionQuote:
		name = "section_quote"
	case newsletter.SectionImage:
		if s.ImageURL == "" {
			return "", nil
		}
		name = "section_image"
	case newsletter.SectionCTA:
		name = "section_cta"
	case newsletter.SectionDivider:
		name = "section_divider"
	case newsletter.SectionCode, newsletter.SectionVideo:
		return "", nil
	default:
		return "", nil
	}

	var buf bytes.Buffer
	if err := r.layouts[style].ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("%w: section %d (%s): %v", ErrRenderFailed, s.ID, s.Type, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of html/template
}

// renderMarkdown converts tenant markdown to sanitized email HTML.
func (r *Renderer) renderMarkdown(src, accent string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.markdownFor(accent).Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("%w: markdown: %v", ErrRenderFailed, err)
	}
	return template.HTML(sanitizer.SanitizeEmailHTML(buf.String())), nil //nolint:gosec // sanitized above
}

func (r *Renderer) markdownFor(accent string) goldmark.Markdown {
	if md, ok := r.markdown.Load(accent); ok {
		return md.(goldmark.Markdown)
	}
	md := goldmark.New(goldmark.WithExtensions(
		extension.Table,
		extension.Strikethrough,
		mailer.NewButtonExtension(mailer.WithButtonStyle(buttonStyle(accent))),
	))
	actual, _ := r.markdown.LoadOrStore(accent, md)
	return actual.(goldmark.Markdown)
}

func articleViews(p Params, th theme) []articleView {
	articles := slices.Clone(p.Articles)
	newsletter.SortArticles(articles)

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		s := a.Slug
		if s == "" {
			s = slug.Make(a.Title)
		}
		text := sanitizer.StripHTML(a.Content)
		if text == "" {
			text = sanitizer.StripHTML(a.Excerpt)
		}
		views = append(views, articleView{
			Theme:        th,
			Category:     a.Category,
			Title:        a.Title,
			URL:          ArticleURL(p.BaseURL, p.Edition.ID, s),
			Body:         TruncateToWords(text, ArticleWordLimit),
			ImageURL:     a.ImageURL,
			ImageCaption: a.ImageCaption,
		})
	}
	return views
}

// pairs groups articles into rows of two; an odd tail gets a row of its own.
func pairs(views []articleView) [][]articleView {
	rows := make([][]articleView, 0, (len(views)+1)/2)
	for chunk := range slices.Chunk(views, 2) {
		rows = append(rows, chunk)
	}
	return rows
}
