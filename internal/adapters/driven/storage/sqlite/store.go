package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/record"
	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/keylock"
)

// dbFile is the database file name inside the data directory.
const dbFile = "docwatch.db"

// Cache entry lifetime and sweep interval.
const (
	cacheTTL     = 10 * time.Minute
	cacheCleanup = 20 * time.Minute
)

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db        *sql.DB
	path      string
	locks     keylock.Map
	cache     *gocache.Cache
	cacheSize int
	newID     func() (string, error)
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCacheSize bounds the number of verified versions kept in memory.
// Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.cacheSize = n
		}
	}
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.docwatch/data/docwatch.db.
func NewStore(dataDir string, opts ...Option) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docwatch", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// WAL mode; every transaction begins IMMEDIATE and waits on busy_timeout.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:        db,
		path:      dbPath,
		cache:     gocache.New(cacheTTL, cacheCleanup),
		cacheSize: domain.DefaultCacheSize,
		newID:     record.NewVersionID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.cache.Flush()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

// VersionStore returns a VersionStore interface backed by this store.
func (s *Store) VersionStore() driven.VersionStore {
	return &versionStore{store: s}
}

// ChangeStore returns a ChangeStore interface backed by this store.
func (s *Store) ChangeStore() driven.ChangeStore {
	return &changeStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// writeErr wraps a failed write so callers can match domain.ErrStorageWrite.
func writeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageWrite, op, err)
}

// ==================== Source Store ====================

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

// EnsureSource registers a source if it is not yet known.
func (s *sourceStore) EnsureSource(ctx context.Context, source domain.Source) (*domain.Source, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = s.store.now()
	}
	source.CreatedAt = source.CreatedAt.UTC()

	data, sum, err := record.Seal(record.FromSource(&source))
	if err != nil {
		return nil, writeErr("encoding source", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sources (id, url, type, created_at, record, checksum)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, source.ID, source.URL, string(source.Type), source.CreatedAt.UnixNano(), string(data), sum)
	if err != nil {
		return nil, writeErr("saving source", err)
	}
	return s.GetSource(ctx, source.ID)
}

// GetSource retrieves a source by ID.
func (s *sourceStore) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT id, record, checksum FROM sources WHERE id = ?`, id)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return source, err
}

// ListSources returns all sources ordered by ID.
func (s *sourceStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT id, record, checksum FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*domain.Source, error) {
	var id, data, sum string
	if err := row.Scan(&id, &data, &sum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}
	if err := record.Verify("source", id, []byte(data), sum); err != nil {
		return nil, err
	}
	var rec record.Source
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling source %s: %w", id, err)
	}
	return rec.ToDomain()
}
