// Package normalisers provides the Registry that dispatches raw documents
// to format-specific normalisers and validates their output. Each
// sub-package knows how to turn one source type into ordered sections.
//
// Normalisers are registered with the Registry at startup via
// RegisterDefaults.
package normalisers
