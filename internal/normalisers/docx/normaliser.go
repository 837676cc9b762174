package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/normalisers/sections"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var errMissingDocument = errors.New("word/document.xml not found")

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedTypes returns the source types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceTypeDOCX}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a DOCX document into sections. Paragraphs styled
// Heading1-Heading6 (or carrying an outline level) open sections; when
// the document has no styled headings, text heuristics apply.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, domain.NewParseFailure(raw.SourceID, fmt.Errorf("open docx: %w", err))
	}

	content, err := readEntry(reader, "word/document.xml")
	if err != nil {
		return nil, domain.NewParseFailure(raw.SourceID, err)
	}

	paras, err := parseParagraphs(content)
	if err != nil {
		return nil, domain.NewParseFailure(raw.SourceID, fmt.Errorf("parse document.xml: %w", err))
	}

	styled := false
	for _, p := range paras {
		if p.level > 0 {
			styled = true
			break
		}
	}

	var b sections.Builder
	method := "docx-styles"
	if !styled {
		method = "docx-heuristic"
	}
	for _, p := range paras {
		switch {
		case p.level > 0:
			b.Heading(p.text, p.level)
		case !styled:
			if text, level, ok := sections.DetectHeading(p.text); ok {
				b.Heading(text, level)
				continue
			}
			b.Paragraph(p.text)
		default:
			b.Paragraph(p.text)
		}
	}

	title := extractTitle(reader)
	if title == "" {
		title = sections.TitleFromURI(raw.URI)
	}
	return sections.Result(b.Sections(), title, method, nil), nil
}

// readEntry returns the bytes of one archive member.
func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return content, nil
	}
	if name == "word/document.xml" {
		return nil, errMissingDocument
	}
	return nil, fmt.Errorf("%s not found", name)
}

// paragraph is one w:p element in document order.
type paragraph struct {
	text  string
	level int
}

// parseParagraphs streams document.xml, including paragraphs nested in
// tables, and resolves heading levels from paragraph properties.
func parseParagraphs(content []byte) ([]paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		out    []paragraph
		depth  int
		text   strings.Builder
		level  int
		inText bool
		inPara bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				depth++
				if depth == 1 {
					inPara = true
					text.Reset()
					level = 0
				}
			case "pStyle":
				if inPara {
					if l := styleLevel(attr(t, "val")); l > 0 {
						level = l
					}
				}
			case "outlineLvl":
				if inPara && level == 0 {
					if v, err := strconv.Atoi(attr(t, "val")); err == nil && v >= 0 && v < domain.MaxSectionLevel {
						level = v + 1
					}
				}
			case "t":
				inText = true
			case "tab", "br", "cr":
				if inPara {
					text.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				depth--
				if depth == 0 && inPara {
					inPara = false
					if s := strings.TrimSpace(text.String()); s != "" {
						out = append(out, paragraph{text: s, level: level})
					}
				}
			}
		case xml.CharData:
			if inPara && inText {
				text.Write(t)
			}
		}
	}
	return out, nil
}

// styleLevel maps a paragraph style id such as "Heading2" or "Title" to a level.
func styleLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 1
	}
	if !strings.HasPrefix(s, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
	if err != nil || n < 1 || n > domain.MaxSectionLevel {
		return 0
	}
	return n
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle reads the title from docProps/core.xml.
func extractTitle(reader *zip.Reader) string {
	content, err := readEntry(reader, "docProps/core.xml")
	if err != nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
