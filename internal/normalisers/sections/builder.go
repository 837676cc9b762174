package sections

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Metadata keys written by Result.
const (
	MetaTitle         = "title"
	MetaMethod        = "extraction_method"
	MetaSectionCount  = "section_count"
	MetaContentLength = "content_length"
	MetaPageCount     = "page_count"
)

type pending struct {
	heading string
	level   int
	paras   []string
}

// Builder accumulates a heading and paragraph stream into sections.
// Text before the first heading forms a level-0 preamble with no heading.
// The zero value is ready to use.
type Builder struct {
	done []pending
	cur  *pending
}

// Heading opens a new section. Empty headings are ignored.
func (b *Builder) Heading(text string, level int) {
	text = Normalise(text)
	if text == "" {
		return
	}
	b.flush()
	b.cur = &pending{heading: text, level: clampLevel(level)}
}

// Untitled opens a new headless section at level 0.
func (b *Builder) Untitled() {
	b.flush()
	b.cur = &pending{}
}

// Paragraph appends normalised text to the current section.
func (b *Builder) Paragraph(text string) {
	text = Normalise(text)
	if text == "" {
		return
	}
	if b.cur == nil {
		b.cur = &pending{}
	}
	b.cur.paras = append(b.cur.paras, text)
}

// Section appends a complete section.
func (b *Builder) Section(heading string, level int, body string) {
	b.Heading(heading, level)
	if Normalise(heading) == "" {
		b.Untitled()
	}
	for _, p := range Paragraphs(body) {
		b.Paragraph(p)
	}
}

func (b *Builder) flush() {
	if b.cur == nil {
		return
	}
	if b.cur.heading != "" || len(b.cur.paras) > 0 {
		b.done = append(b.done, *b.cur)
	}
	b.cur = nil
}

// Len returns the number of sections built so far.
func (b *Builder) Len() int {
	n := len(b.done)
	if b.cur != nil && (b.cur.heading != "" || len(b.cur.paras) > 0) {
		n++
	}
	return n
}

// Sections returns the ordered sections with ids and positions assigned.
// Ids derive from the heading and its occurrence ordinal.
func (b *Builder) Sections() []domain.Section {
	b.flush()
	out := make([]domain.Section, 0, len(b.done))
	ordinals := make(map[string]int, len(b.done))
	for i, p := range b.done {
		key := strings.ToLower(p.heading)
		ord := ordinals[key]
		ordinals[key] = ord + 1
		out = append(out, domain.Section{
			ID:       domain.SectionID(p.heading, ord),
			Heading:  p.heading,
			Body:     strings.Join(p.paras, "\n"),
			Level:    p.level,
			Position: i,
		})
	}
	return out
}

// Result packages sections into a NormaliseResult with the content hash
// and standard extraction metadata.
func Result(secs []domain.Section, title, method string, extra map[string]string) *driven.NormaliseResult {
	length := 0
	for i := range secs {
		length += len(secs[i].Heading) + len(secs[i].Body)
	}
	meta := map[string]string{
		MetaMethod:        method,
		MetaSectionCount:  strconv.Itoa(len(secs)),
		MetaContentLength: strconv.Itoa(length),
	}
	title = Normalise(title)
	if title != "" {
		meta[MetaTitle] = title
	}
	for k, v := range extra {
		meta[k] = v
	}
	return &driven.NormaliseResult{
		Sections:    secs,
		ContentHash: domain.ContentHash(secs),
		Title:       title,
		Metadata:    meta,
	}
}

func clampLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > domain.MaxSectionLevel:
		return domain.MaxSectionLevel
	default:
		return level
	}
}
