// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - SourceStore: monitored source identities
//   - VersionStore: immutable versions and their lineage
//   - ChangeStore: the append-only change log
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Integrity
//
// Every row carries its canonical JSON record and the SHA-256 checksum taken
// at write time. Reads recompute the checksum and return *domain.CorruptionError
// on mismatch rather than the damaged data.
//
// # Data Location
//
// By default, the database is stored at ~/.docwatch/data/docwatch.db
//
// # Thread Safety
//
// All operations are thread-safe. Writes for one source are serialised by a
// per-source lock and run in BEGIN IMMEDIATE transactions; SQLite in WAL mode
// lets readers proceed alongside them.
package sqlite
