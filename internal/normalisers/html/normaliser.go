package html

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/normalisers/sections"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Boilerplate thresholds.
const (
	// maxLinkDensity is the share of anchor text above which a container
	// is treated as navigation.
	maxLinkDensity = 0.6

	// minLinksForDensity is the number of anchors a container needs
	// before link density applies.
	minLinksForDensity = 3

	// minRootText is the text length a main/article candidate needs to
	// be chosen as content root.
	minRootText = 80
)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedTypes returns the source types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceTypeHTML}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts an HTML document into sections.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := decode(raw.Content, raw.Metadata["content_type"])
	if err != nil {
		return nil, domain.NewParseFailure(raw.SourceID, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, domain.NewParseFailure(raw.SourceID, fmt.Errorf("parse html: %w", err))
	}

	title := sections.Normalise(doc.Find("title").First().Text())
	if title == "" {
		title = sections.TitleFromURI(raw.URI)
	}

	removeBoilerplate(doc)
	root, rootName := contentRoot(doc)

	var b sections.Builder
	w := &walker{b: &b}
	for _, node := range root.Nodes {
		w.walk(node)
	}
	w.flush()

	return sections.Result(b.Sections(), title, "html", map[string]string{
		"content_root": rootName,
	}), nil
}

// decode converts content to UTF-8 using the declared or sniffed charset.
func decode(content []byte, contentType string) ([]byte, error) {
	enc, name, _ := charset.DetermineEncoding(content, contentType)
	if name == "utf-8" || name == "" {
		if !utf8.Valid(content) {
			return nil, errors.New("invalid utf-8 content")
		}
		return content, nil
	}
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

// Boilerplate selectors.
const (
	structuralSelector = "head, script, style, noscript, template, svg, canvas, iframe, object, " +
		"form, button, select, nav, aside, dialog, menu"
	ariaSelector = `[role=navigation], [role=banner], [role=contentinfo], [role=complementary], ` +
		`[role=search], [role=dialog], [aria-hidden=true], [hidden]`
)

// boilerplateTokens are class and id tokens that mark non-content containers.
var boilerplateTokens = map[string]bool{
	"nav": true, "navbar": true, "navigation": true, "menu": true, "sidebar": true,
	"breadcrumb": true, "breadcrumbs": true, "footer": true, "masthead": true,
	"cookie": true, "cookies": true, "consent": true, "banner": true, "advert": true,
	"ads": true, "advertisement": true, "promo": true, "social": true, "share": true,
	"sharing": true, "subscribe": true, "newsletter": true, "popup": true, "modal": true,
	"skiplink": true, "toc": true, "pagination": true, "related": true,
}

// removeBoilerplate strips non-content elements in place.
func removeBoilerplate(doc *goquery.Document) {
	doc.Find(structuralSelector).Remove()
	doc.Find(ariaSelector).Remove()

	// Page chrome; headers inside articles often carry the article title.
	doc.Find("header, footer").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("article, main, [role=main]").Length() == 0 {
			s.Remove()
		}
	})

	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		if protected(s) {
			return
		}
		if hasBoilerplateToken(s.AttrOr("class", "")) || hasBoilerplateToken(s.AttrOr("id", "")) {
			s.Remove()
		}
	})

	doc.Find("div, ul, ol, section, table, p").Each(func(_ int, s *goquery.Selection) {
		if protected(s) {
			return
		}
		if linkDense(s) {
			s.Remove()
		}
	})
}

// protected reports whether s is a structural root that must never be removed.
func protected(s *goquery.Selection) bool {
	return s.Is("html, body, main, article, [role=main]")
}

func hasBoilerplateToken(attr string) bool {
	if attr == "" {
		return false
	}
	tokens := strings.FieldsFunc(strings.ToLower(attr), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, tok := range tokens {
		if boilerplateTokens[tok] {
			return true
		}
	}
	return strings.Contains(strings.ToLower(attr), "skip-link")
}

// linkDense reports whether anchor text dominates the container.
func linkDense(s *goquery.Selection) bool {
	links := s.Find("a")
	if links.Length() < minLinksForDensity {
		return false
	}
	total := len(strings.Join(strings.Fields(s.Text()), ""))
	if total == 0 {
		return false
	}
	anchor := len(strings.Join(strings.Fields(links.Text()), ""))
	return float64(anchor)/float64(total) > maxLinkDensity
}

// contentRoot picks the first substantial main/article, falling back to body.
func contentRoot(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range []string{"main", "[role=main]", "article"} {
		var found *goquery.Selection
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if len(sections.Normalise(s.Text())) >= minRootText {
				found = s
				return false
			}
			return true
		})
		if found != nil {
			return found.First(), sel
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body.First(), "body"
	}
	return doc.Selection, "document"
}

// walker streams the DOM into a section builder.
type walker struct {
	b   *sections.Builder
	buf strings.Builder
}

func (w *walker) walk(n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		w.buf.WriteString(n.Data)
		return
	case xhtml.ElementNode:
		if level := headingLevel(n.DataAtom); level > 0 {
			w.flush()
			w.b.Heading(textOf(n), level)
			return
		}
		if n.DataAtom == atom.Br {
			w.buf.WriteByte(' ')
			return
		}
		if isBlock(n.DataAtom) {
			w.flush()
			defer w.flush()
		}
	case xhtml.CommentNode, xhtml.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *walker) flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.b.Paragraph(w.buf.String())
	w.buf.Reset()
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	default:
		return 0
	}
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Thead: true, atom.Tbody: true,
	atom.Blockquote: true, atom.Pre: true, atom.Figure: true, atom.Figcaption: true,
	atom.Hr: true, atom.Details: true, atom.Summary: true, atom.Address: true,
	atom.Header: true, atom.Footer: true, atom.Body: true,
}

func isBlock(a atom.Atom) bool {
	return blockAtoms[a]
}

// textOf returns the concatenated text below n.
func textOf(n *xhtml.Node) string {
	var sb strings.Builder
	var collect func(*xhtml.Node)
	collect = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == xhtml.ElementNode && n.DataAtom == atom.Br {
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

