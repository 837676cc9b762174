package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/normalisers/sections"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var errNoReadablePages = errors.New("no readable pages")

// PageExtractor returns the plain text of each page in order.
// A page that cannot be read is returned as an empty string.
type PageExtractor func(content []byte) (pages []string, failed int, err error)

// Normaliser handles PDF documents.
type Normaliser struct {
	extract PageExtractor
}

// New creates a new PDF normaliser backed by ledongthuc/pdf.
func New() *Normaliser {
	return &Normaliser{extract: extractPages}
}

// NewWithExtractor creates a PDF normaliser with a custom page extractor.
func NewWithExtractor(extract PageExtractor) *Normaliser {
	return &Normaliser{extract: extract}
}

// SupportedTypes returns the source types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceTypePDF}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a PDF document into sections.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	pages, failed, err := n.safeExtract(raw.Content)
	if err != nil {
		return nil, domain.NewParseFailure(raw.SourceID, err)
	}
	if len(pages) > 0 && failed == len(pages) {
		return nil, domain.NewParseFailure(raw.SourceID, errNoReadablePages)
	}

	b, method := segment(pages)
	secs := b.Sections()

	title := raw.Metadata["title"]
	if title == "" {
		title = firstHeading(secs)
	}
	if title == "" {
		title = sections.TitleFromURI(raw.URI)
	}

	return sections.Result(secs, title, method, map[string]string{
		sections.MetaPageCount: strconv.Itoa(len(pages)),
		"failed_pages":         strconv.Itoa(failed),
	}), nil
}

// safeExtract converts extractor panics on malformed input into errors.
func (n *Normaliser) safeExtract(content []byte) (pages []string, failed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, failed, err = nil, 0, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	return n.extract(content)
}

// segment splits page text at heading lines. Without any heading line
// each page becomes a level-0 section titled "Page N".
func segment(pages []string) (*sections.Builder, string) {
	type line struct {
		text    string
		heading string
		level   int
	}
	lined := make([][]line, len(pages))
	hasHeadings := false
	for i, page := range pages {
		for _, l := range sections.Lines(page) {
			entry := line{text: l}
			if h, level, ok := sections.DetectHeading(l); ok {
				entry.heading, entry.level = h, level
				hasHeadings = true
			}
			lined[i] = append(lined[i], entry)
		}
	}

	b := &sections.Builder{}
	if !hasHeadings {
		for i, page := range pages {
			if len(sections.Paragraphs(page)) == 0 {
				continue
			}
			b.Heading("Page "+strconv.Itoa(i+1), 0)
			for _, p := range sections.Paragraphs(page) {
				b.Paragraph(p)
			}
		}
		return b, "pdf-pages"
	}

	var para []byte
	flush := func() {
		if len(para) > 0 {
			b.Paragraph(string(para))
			para = para[:0]
		}
	}
	for _, page := range lined {
		for _, l := range page {
			if l.heading != "" {
				flush()
				b.Heading(l.heading, l.level)
				continue
			}
			if len(para) > 0 {
				para = append(para, ' ')
			}
			para = append(para, l.text...)
		}
		flush()
	}
	return b, "pdf-headings"
}

func firstHeading(secs []domain.Section) string {
	for i := range secs {
		if secs[i].Heading != "" {
			return secs[i].Heading
		}
	}
	return ""
}

// extractPages reads page text with ledongthuc/pdf.
func extractPages(content []byte) ([]string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	failed := 0
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			failed++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			failed++
			continue
		}
		pages = append(pages, text)
	}
	return pages, failed, nil
}
