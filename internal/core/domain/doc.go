// Package domain defines the core business entities for docwatch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: A stable monitored document identity (URL + type)
//   - RawDocument: Already-fetched bytes for one source
//   - Section: The atomic comparison unit within a version
//   - Version: One immutable normalisation snapshot of a source
//   - Change: A classified, scored difference between two versions
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
