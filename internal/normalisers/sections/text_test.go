package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalise(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"collapses whitespace", "  a \t b\n\nc  ", "a b c"},
		{"curly quotes", "\u201cquoted\u201d and \u2018single\u2019", `"quoted" and 'single'`},
		{"dashes", "a\u2013b\u2014c", "a-b-c"},
		{"zero width", "zero\u200bwidth\ufeff", "zerowidth"},
		{"nfkc ligature", "\ufb01le", "file"},
		{"non-breaking space", "a\u00a0b", "a b"},
		{"fullwidth digits", "\uff11\uff12", "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalise(tt.input))
		})
	}
}

func TestNormalise_Idempotent(t *testing.T) {
	in := "  \u201cHello\u201d \u2014 world\u200b  "
	once := Normalise(in)
	assert.Equal(t, once, Normalise(once))
}

func TestParagraphs(t *testing.T) {
	text := "First line\nwraps here.\r\n\r\n\n  Second   paragraph.\n\n   \n"
	assert.Equal(t, []string{"First line wraps here.", "Second paragraph."}, Paragraphs(text))
	assert.Empty(t, Paragraphs("  \n\n "))
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, Lines(" a \r\n\n b c \n"))
}

func TestTitleFromURI(t *testing.T) {
	tests := []struct {
		uri      string
		expected string
	}{
		{"/path/to/release_notes-2024.pdf", "release notes 2024"},
		{"https://example.com/docs/getting-started/", "getting started"},
		{"https://example.com/page.html?x=1#top", "page"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleFromURI(tt.uri))
		})
	}
}
