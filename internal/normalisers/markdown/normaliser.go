package markdown

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/normalisers/sections"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct {
	md goldmark.Markdown
}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// SupportedTypes returns the source types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceTypeMarkdown}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a Markdown document into sections at ATX and
// Setext heading boundaries.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, domain.NewParseFailure(raw.SourceID, errInvalidEncoding)
	}

	src := raw.Content
	doc := n.md.Parser().Parse(text.NewReader(src))

	var b sections.Builder
	title := ""
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			heading := inlineText(h, src)
			if title == "" && h.Level == 1 {
				title = heading
			}
			b.Heading(heading, h.Level)
			continue
		}
		for _, p := range blockText(node, src) {
			b.Paragraph(p)
		}
	}

	if title == "" {
		title = sections.TitleFromURI(raw.URI)
	}
	return sections.Result(b.Sections(), title, "markdown", nil), nil
}

// blockText flattens a block node into paragraphs.
func blockText(n ast.Node, src []byte) []string {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return []string{inlineText(node, src)}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return []string{linesText(node, src)}
	case *ast.HTMLBlock, *ast.ThematicBreak:
		return nil
	case *ast.Heading:
		// Nested headings (inside lists or quotes) read as text.
		return []string{inlineText(node, src)}
	}

	var out []string
	if n.HasChildren() {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if c.Type() == ast.TypeInline {
				out = append(out, inlineText(n, src))
				break
			}
			out = append(out, blockText(c, src)...)
		}
		return out
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		out = append(out, linesText(n, src))
	}
	return out
}

// inlineText concatenates the inline text below n.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				sb.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(t.Value)
			case *ast.AutoLink:
				sb.Write(t.Label(src))
			case *ast.RawHTML:
				// Inline tags carry no text.
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// linesText joins the raw source lines of a leaf block.
func linesText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(src))
	}
	return sb.String()
}
