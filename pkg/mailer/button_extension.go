package mailer

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultButtonStyle is the inline style applied to rendered buttons.
const DefaultButtonStyle = "display:inline-block;padding:12px 24px;background-color:#3b82f6;color:#ffffff;" +
	"text-decoration:none;border-radius:6px;font-weight:600;"

var buttonPrefix = []byte("[!button|")

// KindButton is the node kind for ButtonNode.
var KindButton = ast.NewNodeKind("Button")

// ButtonNode is an inline call-to-action link.
type ButtonNode struct {
	ast.BaseInline
	URL   []byte
	Label []byte
}

// Kind implements ast.Node.
func (n *ButtonNode) Kind() ast.NodeKind { return KindButton }

// Dump implements ast.Node.
func (n *ButtonNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"URL":   string(n.URL),
		"Label": string(n.Label),
	}, nil)
}

type buttonParser struct{}

func (buttonParser) Trigger() []byte { return []byte{'['} }

// Parse reads [!button|Label](URL) from the current line.
func (buttonParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	rest, ok := bytes.CutPrefix(line, buttonPrefix)
	if !ok {
		return nil
	}

	label, afterLabel, ok := bytes.Cut(rest, []byte("]("))
	if !ok || len(label) == 0 || bytes.IndexByte(label, ']') >= 0 {
		return nil
	}
	url, _, ok := bytes.Cut(afterLabel, []byte(")"))
	if !ok {
		return nil
	}

	consumed := len(buttonPrefix) + len(label) + 2 + len(url) + 1
	block.Advance(consumed)

	return &ButtonNode{
		URL:   bytes.TrimSpace(url),
		Label: label,
	}
}

type buttonRenderer struct {
	style string
	html.Config
}

func (r *buttonRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindButton, r.render)
}

func (r *buttonRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ButtonNode)

	href := n.URL
	if !r.Unsafe && html.IsDangerousURL(href) {
		href = []byte("#")
	}

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(href, true)))
	_, _ = w.WriteString(`" style="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.style)))
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(util.EscapeHTML(n.Label))
	_, _ = w.WriteString(`</a>`)
	return ast.WalkContinue, nil
}

// ButtonOption configures the button extension.
type ButtonOption func(*buttonRenderer)

// WithButtonStyle replaces DefaultButtonStyle.
func WithButtonStyle(style string) ButtonOption {
	return func(r *buttonRenderer) {
		if style != "" {
			r.style = style
		}
	}
}

type buttonExtension struct {
	opts []ButtonOption
}

// NewButtonExtension returns a goldmark extension for [!button|Label](URL) links.
func NewButtonExtension(opts ...ButtonOption) goldmark.Extender {
	return &buttonExtension{opts: opts}
}

func (e *buttonExtension) Extend(m goldmark.Markdown) {
	r := &buttonRenderer{style: DefaultButtonStyle, Config: html.NewConfig()}
	for _, opt := range e.opts {
		opt(r)
	}
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(buttonParser{}, 50),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(r, 50),
	))
}
