package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sync"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
)

// Renderer turns markdown templates into HTML wrapped in a layout.
// Parsed templates and layouts are cached; rendered output never is.
type Renderer struct {
	fs        fs.FS
	md        goldmark.Markdown
	templates map[string]*parsedTemplate
	layouts   map[string]*template.Template
	layoutDir string
	mu        sync.RWMutex
}

type parsedTemplate struct {
	metadata map[string]any
	body     *texttemplate.Template
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLayoutDir sets the directory layouts are read from. Default: "layouts".
func WithLayoutDir(dir string) RendererOption {
	return func(r *Renderer) {
		if dir != "" {
			r.layoutDir = dir
		}
	}
}

// WithMarkdown replaces the markdown processor.
func WithMarkdown(md goldmark.Markdown) RendererOption {
	return func(r *Renderer) {
		if md != nil {
			r.md = md
		}
	}
}

// NewRenderer creates a renderer reading templates and layouts from fsys.
func NewRenderer(fsys fs.FS, opts ...RendererOption) *Renderer {
	r := &Renderer{
		fs:        fsys,
		md:        goldmark.New(goldmark.WithExtensions(NewButtonExtension())),
		templates: make(map[string]*parsedTemplate),
		layouts:   make(map[string]*template.Template),
		layoutDir: "layouts",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderResult is a rendered message body.
type RenderResult struct {
	Metadata map[string]any
	HTML     string
	Text     string // markdown after template execution
}

// Render executes the named template file and wraps it in layout.
func (r *Renderer) Render(layout, name string, data any) (*RenderResult, error) {
	tmpl, err := r.template(name)
	if err != nil {
		return nil, err
	}
	return r.render(layout, tmpl, data)
}

// RenderString renders markdown that does not live in the filesystem,
// such as content stored with a tenant. The source is parsed on every call.
func (r *Renderer) RenderString(layout, source string, data any) (*RenderResult, error) {
	tmpl, err := parse("inline", []byte(source))
	if err != nil {
		return nil, err
	}
	return r.render(layout, tmpl, data)
}

func (r *Renderer) render(layout string, tmpl *parsedTemplate, data any) (*RenderResult, error) {
	var markdown bytes.Buffer
	if err := tmpl.body.Execute(&markdown, data); err != nil {
		return nil, fmt.Errorf("%w: execute template: %v", ErrRenderFailed, err)
	}

	var body bytes.Buffer
	if err := r.md.Convert(markdown.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("%w: convert markdown: %v", ErrRenderFailed, err)
	}

	lt, err := r.layout(layout)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = lt.Execute(&out, map[string]any{
		"Content":  template.HTML(body.String()), //nolint:gosec // produced by goldmark without raw HTML
		"Metadata": tmpl.metadata,
		"Data":     data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: execute layout: %v", ErrRenderFailed, err)
	}

	return &RenderResult{
		Metadata: tmpl.metadata,
		HTML:     out.String(),
		Text:     markdown.String(),
	}, nil
}

func (r *Renderer) template(name string) (*parsedTemplate, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.templates[name]; ok {
		return t, nil
	}

	content, err := fs.ReadFile(r.fs, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, name, err)
	}
	t, err = parse(name, content)
	if err != nil {
		return nil, err
	}
	r.templates[name] = t
	return t, nil
}

func (r *Renderer) layout(name string) (*template.Template, error) {
	r.mu.RLock()
	lt, ok := r.layouts[name]
	r.mu.RUnlock()
	if ok {
		return lt, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lt, ok := r.layouts[name]; ok {
		return lt, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayoutNotFound, name, err)
	}
	lt, err = template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse layout %s: %v", ErrRenderFailed, name, err)
	}
	r.layouts[name] = lt
	return lt, nil
}

func parse(name string, content []byte) (*parsedTemplate, error) {
	parsed, err := ParseTemplate(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderFailed, name, err)
	}
	body, err := texttemplate.New(name).Parse(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}
	return &parsedTemplate{metadata: parsed.Metadata, body: body}, nil
}
