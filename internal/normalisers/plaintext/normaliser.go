package plaintext

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/normalisers/sections"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var errInvalidEncoding = errors.New("text is not valid utf-8")

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedTypes returns the source types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceTypeText}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise splits text into paragraphs. A paragraph whose first line
// reads as a heading opens a section; without any headings every
// paragraph becomes its own level-0 section.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	content := strings.TrimPrefix(string(raw.Content), "\ufeff")
	if !utf8.ValidString(content) {
		return nil, domain.NewParseFailure(raw.SourceID, errInvalidEncoding)
	}

	blocks := splitBlocks(content)

	type heading struct {
		text  string
		level int
	}
	found := make([]*heading, len(blocks))
	hasHeadings := false
	for i, lines := range blocks {
		if text, level, ok := sections.DetectHeading(lines[0]); ok {
			found[i] = &heading{text: text, level: level}
			hasHeadings = true
		}
	}

	var b sections.Builder
	method := "text-headings"
	if !hasHeadings {
		method = "text-paragraphs"
		for _, lines := range blocks {
			b.Untitled()
			b.Paragraph(strings.Join(lines, " "))
		}
	} else {
		for i, lines := range blocks {
			if h := found[i]; h != nil {
				b.Heading(h.text, h.level)
				if len(lines) > 1 {
					b.Paragraph(strings.Join(lines[1:], " "))
				}
				continue
			}
			b.Paragraph(strings.Join(lines, " "))
		}
	}

	title := titleFromMetadataOrURI(raw)
	return sections.Result(b.Sections(), title, method, nil), nil
}

// splitBlocks groups non-empty lines separated by blank lines.
func splitBlocks(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// titleFromMetadataOrURI checks metadata for title first, then falls back to URI.
func titleFromMetadataOrURI(raw *domain.RawDocument) string {
	if title := raw.Metadata["title"]; title != "" {
		return title
	}
	return sections.TitleFromURI(raw.URI)
}
