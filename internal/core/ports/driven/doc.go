// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Normaliser: Transforms raw bytes into sections
//   - NormaliserRegistry: Selects the normaliser and validates output
//   - VersionStore: Immutable version persistence and lineage
//   - ChangeStore: Append-only change log queries
//   - SourceStore: Source identity persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ChangePublisher: Change fan-out (NATS). Without it, changes are only stored.
//   - MetricsRecorder: Instrumentation (Prometheus).
//   - RuleSource: Classification rule overrides (YAML). Without it, built-in rules apply.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
