// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ChangeDetector is pure: it reads two versions and returns changes
// without touching any port. The IngestionCoordinator sequences
// normalise, deduplicate and commit for one source; BatchIngester runs
// many coordinators on a bounded pool. LineageService answers audit
// queries over what has been stored.
package services
