package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/record"
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/keylock"
)

// Ensure VersionStore implements the interfaces.
var (
	_ driven.VersionStore = (*VersionStore)(nil)
	_ driven.ChangeStore  = (*VersionStore)(nil)
)

// sealed is an encoded record and the checksum taken when it was written.
type sealed struct {
	data     []byte
	checksum string
}

type storedVersion struct {
	sealed
	sourceID string
	seq      int64
}

// VersionStore is an in-memory implementation of driven.VersionStore
// and driven.ChangeStore. Records are kept encoded with their checksums,
// so reads return independent copies and detect tampering.
type VersionStore struct {
	locks keylock.Map

	mu            sync.RWMutex
	seq           int64
	versions      map[string]*storedVersion
	bySource      map[string][]string
	changes       map[string]sealed
	changeOrder   []string
	sourceChanges map[string][]string
	pairChanges   map[string][]string

	newID func() (string, error)
	now   func() time.Time
}

// NewVersionStore creates a new in-memory version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{
		versions:      make(map[string]*storedVersion),
		bySource:      make(map[string][]string),
		changes:       make(map[string]sealed),
		sourceChanges: make(map[string][]string),
		pairChanges:   make(map[string][]string),
		newID:         record.NewVersionID,
		now:           time.Now,
	}
}

func pairKey(oldID, newID string) string {
	return oldID + "|" + newID
}

// StoreVersion persists a version without change detection or
// duplicate checks.
func (s *VersionStore) StoreVersion(ctx context.Context, sourceID string, sections []domain.Section,
	contentHash string, metadata map[string]string) (string, error) {
	draft := domain.VersionDraft{
		SourceID:    sourceID,
		ContentHash: contentHash,
		Sections:    sections,
		ExtractedAt: s.now().UTC(),
		Metadata:    metadata,
	}
	v, _, err := s.commit(ctx, draft, nil, false)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}

// CommitVersion persists a version with its derived changes.
// When the draft duplicates the latest version it returns that version
// and domain.ErrDuplicateContent.
func (s *VersionStore) CommitVersion(ctx context.Context, draft domain.VersionDraft,
	derive driven.ChangeDeriver) (*domain.Version, []domain.Change, error) {
	return s.commit(ctx, draft, derive, true)
}

func (s *VersionStore) commit(ctx context.Context, draft domain.VersionDraft, derive driven.ChangeDeriver,
	dedupe bool) (*domain.Version, []domain.Change, error) {
	if err := draft.Validate(); err != nil {
		return nil, nil, err
	}

	unlock := s.locks.Lock(draft.SourceID)
	defer unlock()

	latest, err := s.GetLatestVersion(ctx, draft.SourceID)
	if err != nil {
		return nil, nil, err
	}
	if dedupe && latest != nil && latest.ContentHash == draft.ContentHash {
		return latest, nil, domain.ErrDuplicateContent
	}

	id, err := s.newID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}
	v := draft.Version(id)

	var changes []domain.Change
	if derive != nil {
		changes, err = derive(latest, v)
		if err != nil {
			return nil, nil, fmt.Errorf("derive changes: %w", err)
		}
	}
	if err := record.CheckChanges(v, changes); err != nil {
		return nil, nil, err
	}

	vdata, vsum, err := record.Seal(record.FromVersion(v))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}
	sealedChanges := make([]sealed, len(changes))
	for i := range changes {
		data, sum, err := record.Seal(record.FromChange(&changes[i]))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
		}
		sealedChanges[i] = sealed{data: data, checksum: sum}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	v.Sequence = s.seq
	s.versions[v.ID] = &storedVersion{
		sealed:   sealed{data: vdata, checksum: vsum},
		sourceID: v.SourceID,
		seq:      s.seq,
	}
	s.bySource[v.SourceID] = append(s.bySource[v.SourceID], v.ID)
	for i := range changes {
		c := &changes[i]
		s.changes[c.ID] = sealedChanges[i]
		s.changeOrder = append(s.changeOrder, c.ID)
		s.sourceChanges[c.SourceID] = append(s.sourceChanges[c.SourceID], c.ID)
		key := pairKey(c.OldVersionID, c.NewVersionID)
		s.pairChanges[key] = append(s.pairChanges[key], c.ID)
	}
	return v, changes, nil
}

// GetLatestVersion returns the most recent version for a source.
func (s *VersionStore) GetLatestVersion(_ context.Context, sourceID string) (*domain.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySource[sourceID]
	if len(ids) == 0 {
		return nil, nil
	}
	return s.loadVersion(ids[len(ids)-1])
}

// ListVersions returns version ids in creation order.
func (s *VersionStore) ListVersions(_ context.Context, sourceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.bySource[sourceID]...), nil
}

// GetVersion retrieves a version by id.
func (s *VersionStore) GetVersion(_ context.Context, versionID string) (*domain.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadVersion(versionID)
}

// VersionChecksum returns the stored and recomputed checksums.
func (s *VersionStore) VersionChecksum(_ context.Context, versionID string) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.versions[versionID]
	if !ok {
		return "", "", domain.ErrNotFound
	}
	return sv.checksum, record.Checksum(sv.data), nil
}

// loadVersion must be called with mu held.
func (s *VersionStore) loadVersion(id string) (*domain.Version, error) {
	sv, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := record.Verify("version", id, sv.data, sv.checksum); err != nil {
		return nil, err
	}
	var rec record.Version
	if err := json.Unmarshal(sv.data, &rec); err != nil {
		return nil, fmt.Errorf("decode version %s: %w", id, err)
	}
	v, err := rec.ToDomain()
	if err != nil {
		return nil, err
	}
	v.Sequence = sv.seq
	return v, nil
}

// GetChange retrieves a change by id.
func (s *VersionStore) GetChange(_ context.Context, id string) (*domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadChange(id)
}

// ListChanges returns all changes for a source in detection order.
func (s *VersionStore) ListChanges(_ context.Context, sourceID string) ([]domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadChanges(s.sourceChanges[sourceID], nil)
}

// ListChangesBetween returns the changes for one version pair.
func (s *VersionStore) ListChangesBetween(_ context.Context, oldVersionID, newVersionID string) ([]domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadChanges(s.pairChanges[pairKey(oldVersionID, newVersionID)], nil)
}

// ListChangesSince returns changes detected at or after since.
func (s *VersionStore) ListChangesSince(_ context.Context, since time.Time) ([]domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadChanges(s.changeOrder, func(c *domain.Change) bool {
		return !c.DetectedAt.Before(since)
	})
}

// CountChanges returns change totals by classification and type.
func (s *VersionStore) CountChanges(_ context.Context) (map[domain.Classification]int, map[domain.ChangeType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	changes, err := s.loadChanges(s.changeOrder, nil)
	if err != nil {
		return nil, nil, err
	}
	byClass := make(map[domain.Classification]int)
	byType := make(map[domain.ChangeType]int)
	for i := range changes {
		byClass[changes[i].Classification]++
		byType[changes[i].Type]++
	}
	return byClass, byType, nil
}

// loadChanges must be called with mu held.
func (s *VersionStore) loadChanges(ids []string, keep func(*domain.Change) bool) ([]domain.Change, error) {
	result := make([]domain.Change, 0, len(ids))
	for _, id := range ids {
		c, err := s.loadChange(id)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(c) {
			result = append(result, *c)
		}
	}
	return result, nil
}

// loadChange must be called with mu held.
func (s *VersionStore) loadChange(id string) (*domain.Change, error) {
	sc, ok := s.changes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := record.Verify("change", id, sc.data, sc.checksum); err != nil {
		return nil, err
	}
	var rec record.Change
	if err := json.Unmarshal(sc.data, &rec); err != nil {
		return nil, fmt.Errorf("decode change %s: %w", id, err)
	}
	return rec.ToDomain()
}
