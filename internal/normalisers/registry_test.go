package normalisers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// registryMockNormaliser is a simple mock for testing registry dispatch.
type registryMockNormaliser struct {
	types    []domain.SourceType
	priority int
	result   *driven.NormaliseResult
	err      error
	panics   bool
	calls    int
}

func (m *registryMockNormaliser) SupportedTypes() []domain.SourceType { return m.types }
func (m *registryMockNormaliser) Priority() int { return m.priority }
func (m *registryMockNormaliser) Normalise(_ context.Context, _ *domain.RawDocument) (*driven.NormaliseResult, error) {
	m.calls++
	if m.panics {
		panic("boom")
	}
	return m.result, m.err
}

func oneSection() *driven.NormaliseResult {
	secs := []domain.Section{{ID: domain.SectionID("A", 0), Heading: "A", Body: "b", Level: 1}}
	return &driven.NormaliseResult{Sections: secs}
}

func TestRegistry_PriorityDispatch(t *testing.T) {
	r := NewRegistry(64)
	low := &registryMockNormaliser{types: []domain.SourceType{domain.SourceTypeText}, priority: 5, result: oneSection()}
	high := &registryMockNormaliser{types: []domain.SourceType{domain.SourceTypeText}, priority: 50, result: oneSection()}
	r.Register(low)
	r.Register(high)

	res, err := r.Normalise(context.Background(), &domain.RawDocument{SourceID: "s", Type: domain.SourceTypeText})
	require.NoError(t, err)
	assert.Equal(t, 1, high.calls)
	assert.Equal(t, 0, low.calls)
	assert.Equal(t, domain.ContentHash(res.Sections), res.ContentHash)
}

func TestRegistry_UnsupportedType(t *testing.T) {
	r := NewRegistry(64)
	_, err := r.Normalise(context.Background(), &domain.RawDocument{SourceID: "s", Type: domain.SourceTypePDF})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedType))

	_, err = r.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_WrapsPlainErrors(t *testing.T) {
	r := NewRegistry(64)
	r.Register(&registryMockNormaliser{types: []domain.SourceType{domain.SourceTypeText}, err: errors.New("decoder exploded")})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{SourceID: "src-9", Type: domain.SourceTypeText})
	var failure *domain.ExtractionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "src-9", failure.SourceID)
	assert.Equal(t, domain.FailureParse, failure.Kind)
}

func TestRegistry_RecoversPanics(t *testing.T) {
	r := NewRegistry(64)
	r.Register(&registryMockNormaliser{types: []domain.SourceType{domain.SourceTypeText}, panics: true})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{SourceID: "s", Type: domain.SourceTypeText})
	assert.True(t, errors.Is(err, domain.ErrParse))
}

func TestRegistry_IncompleteExtraction(t *testing.T) {
	r := NewRegistry(64)
	r.Register(&registryMockNormaliser{
		types:  []domain.SourceType{domain.SourceTypeText},
		result: &driven.NormaliseResult{},
	})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{
		SourceID: "s",
		Type:     domain.SourceTypeText,
		Content:  []byte(strings.Repeat("x", 64)),
	})
	assert.True(t, errors.Is(err, domain.ErrIncompleteExtraction))

	// Short input legitimately yields nothing.
	res, err := r.Normalise(context.Background(), &domain.RawDocument{
		SourceID: "s",
		Type:     domain.SourceTypeText,
		Content:  []byte("   tiny   "),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Sections)
}

func TestRegistry_RejectsInvalidSections(t *testing.T) {
	r := NewRegistry(64)
	bad := oneSection()
	bad.Sections = append(bad.Sections, bad.Sections[0])
	r.Register(&registryMockNormaliser{types: []domain.SourceType{domain.SourceTypeText}, result: bad})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{SourceID: "s", Type: domain.SourceTypeText})
	assert.True(t, errors.Is(err, domain.ErrParse))
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(64)
	assert.ElementsMatch(t, domain.AllSourceTypes(), r.SupportedTypes())

	res, err := r.Normalise(context.Background(), &domain.RawDocument{
		SourceID: "s",
		Type:     domain.SourceTypeHTML,
		Content:  []byte(`<html><body><h1>Overview</h1><p>Hello</p></body></html>`),
	})
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Overview", res.Sections[0].Heading)
}

func TestDefaultRegistry_EmptyHTMLIsIncomplete(t *testing.T) {
	r := NewDefaultRegistry(64)
	content := `<html><head><script>` + strings.Repeat("var a = 1;", 20) + `</script></head><body><nav><a href="/">x</a></nav></body></html>`
	_, err := r.Normalise(context.Background(), &domain.RawDocument{
		SourceID: "s",
		Type:     domain.SourceTypeHTML,
		Content:  []byte(content),
	})
	assert.True(t, errors.Is(err, domain.ErrIncompleteExtraction))
}
