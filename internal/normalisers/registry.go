package normalisers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps source types to normalisers, highest priority first.
type Registry struct {
	mu        sync.RWMutex
	byType    map[domain.SourceType][]driven.Normaliser
	minLength int
}

// NewRegistry creates an empty registry. minLength is the trimmed input
// length at or above which an empty extraction is a failure.
func NewRegistry(minLength int) *Registry {
	return &Registry{
		byType:    make(map[domain.SourceType][]driven.Normaliser),
		minLength: minLength,
	}
}

// Register adds a normaliser for every type it supports.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range n.SupportedTypes() {
		list := append(r.byType[t], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byType[t] = list
	}
}

// SupportedTypes returns all registered source types in a stable order.
func (r *Registry) SupportedTypes() []domain.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.SourceType, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Normalise selects the best normaliser for raw.Type and validates output.
// Any failure of one document is returned as *domain.ExtractionFailure.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	candidates := r.byType[raw.Type]
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no normaliser for source type %q", domain.ErrUnsupportedType, raw.Type)
	}

	result, err := safeNormalise(ctx, candidates[0], raw)
	if err != nil {
		var failure *domain.ExtractionFailure
		if errors.As(err, &failure) {
			return nil, failure
		}
		return nil, domain.NewParseFailure(raw.SourceID, err)
	}

	if err := r.validate(raw, result); err != nil {
		return nil, err
	}
	return result, nil
}

// validate rejects empty output for substantial input and malformed sections.
func (r *Registry) validate(raw *domain.RawDocument, result *driven.NormaliseResult) error {
	if result == nil {
		return domain.NewParseFailure(raw.SourceID, errors.New("normaliser returned no result"))
	}
	if len(result.Sections) == 0 {
		if n := len(bytes.TrimSpace(raw.Content)); n > 0 && n >= r.minLength {
			return domain.NewIncompleteExtraction(raw.SourceID, n)
		}
	}
	if err := domain.ValidateSections(result.Sections); err != nil {
		return domain.NewParseFailure(raw.SourceID, err)
	}
	if result.ContentHash == "" {
		result.ContentHash = domain.ContentHash(result.Sections)
	}
	return nil
}

// safeNormalise converts a normaliser panic into an error for this document.
func safeNormalise(ctx context.Context, n driven.Normaliser, raw *domain.RawDocument) (res *driven.NormaliseResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("normaliser panic: %v", rec)
		}
	}()
	return n.Normalise(ctx, raw)
}
