package normalisers

import (
	"github.com/custodia-labs/docwatch/internal/normalisers/docx"
	"github.com/custodia-labs/docwatch/internal/normalisers/html"
	"github.com/custodia-labs/docwatch/internal/normalisers/markdown"
	"github.com/custodia-labs/docwatch/internal/normalisers/pdf"
	"github.com/custodia-labs/docwatch/internal/normalisers/plaintext"
)

// RegisterDefaults registers all built-in normalisers with the registry.
// Call this during application initialisation.
func RegisterDefaults(r *Registry) {
	r.Register(html.New())
	r.Register(pdf.New())
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(docx.New())
}

// NewDefaultRegistry creates a registry with every built-in normaliser.
func NewDefaultRegistry(minLength int) *Registry {
	r := NewRegistry(minLength)
	RegisterDefaults(r)
	return r
}
