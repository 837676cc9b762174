package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/record"
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// ==================== Version Store ====================

// versionStore implements driven.VersionStore.
type versionStore struct {
	store *Store
}

var _ driven.VersionStore = (*versionStore)(nil)

// StoreVersion persists a version without change detection or
// duplicate checks.
func (s *versionStore) StoreVersion(ctx context.Context, sourceID string, sections []domain.Section,
	contentHash string, metadata map[string]string) (string, error) {
	draft := domain.VersionDraft{
		SourceID:    sourceID,
		ContentHash: contentHash,
		Sections:    sections,
		ExtractedAt: s.store.now().UTC(),
		Metadata:    metadata,
	}
	v, _, err := s.commit(ctx, draft, nil, false)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}

// CommitVersion persists a version with its derived changes in one
// transaction. When the draft duplicates the latest version it returns
// that version and domain.ErrDuplicateContent.
func (s *versionStore) CommitVersion(ctx context.Context, draft domain.VersionDraft,
	derive driven.ChangeDeriver) (*domain.Version, []domain.Change, error) {
	return s.commit(ctx, draft, derive, true)
}

// commit derives and seals under the per-source lock only. The write
// transaction is opened for the inserts, after derivation.
//
//nolint:gocyclo // Sequential commit steps
func (s *versionStore) commit(ctx context.Context, draft domain.VersionDraft, derive driven.ChangeDeriver,
	dedupe bool) (*domain.Version, []domain.Change, error) {
	if err := draft.Validate(); err != nil {
		return nil, nil, err
	}

	unlock := s.store.locks.Lock(draft.SourceID)
	defer unlock()

	latest, err := s.latest(ctx, s.store.db, draft.SourceID)
	if err != nil {
		return nil, nil, err
	}
	if dedupe && latest != nil && latest.ContentHash == draft.ContentHash {
		return latest, nil, domain.ErrDuplicateContent
	}

	id, err := s.store.newID()
	if err != nil {
		return nil, nil, writeErr("assigning version id", err)
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
		return nil, nil, writeErr("encoding version", err)
	}
	type sealedChange struct {
		data, sum string
	}
	sealed := make([]sealedChange, len(changes))
	for i := range changes {
		data, sum, err := record.Seal(record.FromChange(&changes[i]))
		if err != nil {
			return nil, nil, writeErr("encoding change", err)
		}
		sealed[i] = sealedChange{data: string(data), sum: sum}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, writeErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO versions (id, source_id, content_hash, extracted_at, record, checksum)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.SourceID, v.ContentHash, v.ExtractedAt.UnixNano(), string(vdata), vsum)
	if err != nil {
		return nil, nil, writeErr("saving version", err)
	}
	if v.Sequence, err = res.LastInsertId(); err != nil {
		return nil, nil, writeErr("reading version sequence", err)
	}

	if len(changes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO changes (id, source_id, old_version_id, new_version_id, change_type,
				classification, detected_at, record, checksum)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return nil, nil, writeErr("preparing statement", err)
		}
		defer stmt.Close()

		for i := range changes {
			c := &changes[i]
			if _, err := stmt.ExecContext(ctx, c.ID, c.SourceID, c.OldVersionID, c.NewVersionID,
				string(c.Type), string(c.Classification), c.DetectedAt.UnixNano(),
				sealed[i].data, sealed[i].sum); err != nil {
				return nil, nil, writeErr("saving change", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, writeErr("committing transaction", err)
	}
	return v, changes, nil
}

// GetLatestVersion returns the most recent version for a source.
func (s *versionStore) GetLatestVersion(ctx context.Context, sourceID string) (*domain.Version, error) {
	return s.latest(ctx, s.store.db, sourceID)
}

func (s *versionStore) latest(ctx context.Context, q querier, sourceID string) (*domain.Version, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, seq, record, checksum FROM versions
		WHERE source_id = ? ORDER BY seq DESC LIMIT 1
	`, sourceID)
	v, err := s.scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// ListVersions returns version ids in creation order.
func (s *versionStore) ListVersions(ctx context.Context, sourceID string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT id FROM versions WHERE source_id = ? ORDER BY seq`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning version id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return ids, nil
}

// GetVersion retrieves a version by id. Verified versions are cached;
// a cache hit is still checked against the row's current checksum.
func (s *versionStore) GetVersion(ctx context.Context, versionID string) (*domain.Version, error) {
	if cached, ok := s.store.cache.Get(versionID); ok {
		entry := cached.(*cachedVersion)
		stored, actual, err := s.VersionChecksum(ctx, versionID)
		if err != nil {
			s.store.cache.Delete(versionID)
			return nil, err
		}
		if stored == entry.checksum && actual == entry.checksum {
			return entry.version.Clone(), nil
		}
		s.store.cache.Delete(versionID)
	}
	row := s.store.db.QueryRowContext(ctx,
		`SELECT id, seq, record, checksum FROM versions WHERE id = ?`, versionID)
	v, err := s.scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

// VersionChecksum returns the stored and recomputed checksums.
// It always reads the database.
func (s *versionStore) VersionChecksum(ctx context.Context, versionID string) (string, string, error) {
	var data, sum string
	err := s.store.db.QueryRowContext(ctx,
		`SELECT record, checksum FROM versions WHERE id = ?`, versionID).Scan(&data, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", domain.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("scanning version: %w", err)
	}
	return sum, record.Checksum([]byte(data)), nil
}

func (s *versionStore) scanVersion(row scanner) (*domain.Version, error) {
	var (
		id, data, sum string
		seq           int64
	)
	if err := row.Scan(&id, &seq, &data, &sum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning version: %w", err)
	}
	if err := record.Verify("version", id, []byte(data), sum); err != nil {
		return nil, err
	}
	var rec record.Version
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling version %s: %w", id, err)
	}
	v, err := rec.ToDomain()
	if err != nil {
		return nil, err
	}
	v.Sequence = seq
	s.remember(v, sum)
	return v, nil
}

// cachedVersion is a verified version and the checksum it was verified against.
type cachedVersion struct {
	version  *domain.Version
	checksum string
}

// remember caches a verified version while there is room.
func (s *versionStore) remember(v *domain.Version, checksum string) {
	if s.store.cacheSize == 0 || s.store.cache.ItemCount() >= s.store.cacheSize {
		return
	}
	s.store.cache.SetDefault(v.ID, &cachedVersion{version: v.Clone(), checksum: checksum})
}

// ==================== Change Store ====================

// changeStore implements driven.ChangeStore.
type changeStore struct {
	store *Store
}

var _ driven.ChangeStore = (*changeStore)(nil)

const changeColumns = `id, record, checksum`

// GetChange retrieves a change by id.
func (s *changeStore) GetChange(ctx context.Context, id string) (*domain.Change, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM changes WHERE id = ?`, id)
	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// ListChanges returns all changes for a source in detection order.
func (s *changeStore) ListChanges(ctx context.Context, sourceID string) ([]domain.Change, error) {
	return s.query(ctx, `SELECT `+changeColumns+` FROM changes WHERE source_id = ? ORDER BY seq`, sourceID)
}

// ListChangesBetween returns the changes for one version pair.
func (s *changeStore) ListChangesBetween(ctx context.Context, oldVersionID, newVersionID string) ([]domain.Change, error) {
	return s.query(ctx, `SELECT `+changeColumns+` FROM changes
		WHERE old_version_id = ? AND new_version_id = ? ORDER BY seq`, oldVersionID, newVersionID)
}

// ListChangesSince returns changes detected at or after since.
func (s *changeStore) ListChangesSince(ctx context.Context, since time.Time) ([]domain.Change, error) {
	from := int64(math.MinInt64)
	if !since.IsZero() {
		from = since.UnixNano()
	}
	return s.query(ctx, `SELECT `+changeColumns+` FROM changes WHERE detected_at >= ? ORDER BY seq`, from)
}

// CountChanges returns change totals by classification and type.
func (s *changeStore) CountChanges(ctx context.Context) (map[domain.Classification]int, map[domain.ChangeType]int, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT classification, change_type, COUNT(*) FROM changes GROUP BY classification, change_type`)
	if err != nil {
		return nil, nil, fmt.Errorf("counting changes: %w", err)
	}
	defer rows.Close()

	byClass := make(map[domain.Classification]int)
	byType := make(map[domain.ChangeType]int)
	for rows.Next() {
		var class, ctype string
		var n int
		if err := rows.Scan(&class, &ctype, &n); err != nil {
			return nil, nil, fmt.Errorf("scanning change count: %w", err)
		}
		byClass[domain.Classification(class)] += n
		byType[domain.ChangeType(ctype)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating change counts: %w", err)
	}
	return byClass, byType, nil
}

func (s *changeStore) query(ctx context.Context, query string, args ...any) ([]domain.Change, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	changes := []domain.Change{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating changes: %w", err)
	}
	return changes, nil
}

func scanChange(row scanner) (*domain.Change, error) {
	var id, data, sum string
	if err := row.Scan(&id, &data, &sum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning change: %w", err)
	}
	if err := record.Verify("change", id, []byte(data), sum); err != nil {
		return nil, err
	}
	var rec record.Change
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling change %s: %w", id, err)
	}
	return rec.ToDomain()
}
