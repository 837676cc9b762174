package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

func TestBuilder_PreambleAndHeadings(t *testing.T) {
	var b Builder
	b.Paragraph("Welcome  text")
	b.Heading("Overview", 1)
	b.Paragraph("Line one")
	b.Paragraph("Line two")
	b.Heading("Pricing", 2)
	b.Paragraph("Free tier available")

	secs := b.Sections()
	require.Len(t, secs, 3)

	assert.Equal(t, "", secs[0].Heading)
	assert.Equal(t, 0, secs[0].Level)
	assert.Equal(t, "Welcome text", secs[0].Body)

	assert.Equal(t, "Overview", secs[1].Heading)
	assert.Equal(t, "Line one\nLine two", secs[1].Body)
	assert.Equal(t, domain.SectionID("Overview", 0), secs[1].ID)

	assert.Equal(t, "Pricing", secs[2].Heading)
	assert.Equal(t, 2, secs[2].Level)

	require.NoError(t, domain.ValidateSections(secs))
}

func TestBuilder_RepeatedHeadings(t *testing.T) {
	var b Builder
	b.Heading("Examples", 2)
	b.Paragraph("first")
	b.Heading("Examples", 2)
	b.Paragraph("second")

	secs := b.Sections()
	require.Len(t, secs, 2)
	assert.Equal(t, domain.SectionID("Examples", 0), secs[0].ID)
	assert.Equal(t, domain.SectionID("Examples", 1), secs[1].ID)
	assert.NotEqual(t, secs[0].ID, secs[1].ID)
}

func TestBuilder_DropsEmpty(t *testing.T) {
	var b Builder
	b.Untitled()
	b.Heading("   ", 1)
	b.Paragraph("  ")
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Sections())
}

func TestBuilder_HeadingOnlySectionKept(t *testing.T) {
	var b Builder
	b.Heading("Changelog", 9)
	secs := b.Sections()
	require.Len(t, secs, 1)
	assert.Equal(t, domain.MaxSectionLevel, secs[0].Level)
	assert.Empty(t, secs[0].Body)
}

func TestBuilder_Section(t *testing.T) {
	var b Builder
	b.Section("", 0, "para one\n\npara two")
	b.Section("Notes", 1, "body")
	secs := b.Sections()
	require.Len(t, secs, 2)
	assert.Equal(t, "para one\npara two", secs[0].Body)
	assert.Equal(t, "Notes", secs[1].Heading)
}

func TestResult(t *testing.T) {
	var b Builder
	b.Heading("Overview", 1)
	b.Paragraph("Intro")
	secs := b.Sections()

	res := Result(secs, " Docs  Home ", "html", map[string]string{MetaPageCount: "3"})
	assert.Equal(t, domain.ContentHash(secs), res.ContentHash)
	assert.Equal(t, "Docs Home", res.Title)
	assert.Equal(t, "html", res.Metadata[MetaMethod])
	assert.Equal(t, "1", res.Metadata[MetaSectionCount])
	assert.Equal(t, "13", res.Metadata[MetaContentLength])
	assert.Equal(t, "3", res.Metadata[MetaPageCount])
	assert.Equal(t, "Docs Home", res.Metadata[MetaTitle])
}
