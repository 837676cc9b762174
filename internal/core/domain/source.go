package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SourceType is the declared format of a monitored document.
type SourceType string

// Supported source types.
const (
	// SourceTypeHTML is a web page.
	SourceTypeHTML SourceType = "html"

	// SourceTypePDF is a PDF document.
	SourceTypePDF SourceType = "pdf"

	// SourceTypeText is plain text.
	SourceTypeText SourceType = "text"

	// SourceTypeMarkdown is a Markdown document.
	SourceTypeMarkdown SourceType = "markdown"

	// SourceTypeDOCX is a Word document.
	SourceTypeDOCX SourceType = "docx"
)

// AllSourceTypes returns every supported source type in a stable order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeHTML,
		SourceTypePDF,
		SourceTypeText,
		SourceTypeMarkdown,
		SourceTypeDOCX,
	}
}

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeHTML, SourceTypePDF, SourceTypeText, SourceTypeMarkdown, SourceTypeDOCX:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// ParseSourceType converts user input into a SourceType.
// Common aliases ("htm", "txt", "md") are accepted.
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html", "htm", "xhtml":
		return SourceTypeHTML, nil
	case "pdf":
		return SourceTypePDF, nil
	case "text", "txt", "plain":
		return SourceTypeText, nil
	case "markdown", "md":
		return SourceTypeMarkdown, nil
	case "docx":
		return SourceTypeDOCX, nil
	default:
		return "", fmt.Errorf("%w: source type %q", ErrUnsupportedType, s)
	}
}

// SourceTypeFromPath infers a SourceType from a file extension.
func SourceTypeFromPath(path string) (SourceType, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", false
	}
	t, err := ParseSourceType(ext)
	if err != nil {
		return "", false
	}
	return t, true
}

// Source is a stable identity for a monitored document.
// Sources are immutable once created and never deleted.
type Source struct {
	// ID is the unique identifier for the source.
	ID string

	// URL is the document location as reported by the discovery layer.
	URL string

	// Type is the declared document format.
	Type SourceType

	// CreatedAt is when the source was first registered.
	CreatedAt time.Time
}

// Validate checks the source identity is usable.
func (s *Source) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: source type %q", ErrUnsupportedType, s.Type)
	}
	return nil
}
