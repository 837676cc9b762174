package driven

import (
	"context"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// ChangePublisher fans committed changes out to downstream consumers.
// Optional: a nil publisher disables publishing.
type ChangePublisher interface {
	// Publish sends the changes of one committed version.
	Publish(ctx context.Context, version *domain.Version, changes []domain.Change) error

	// Close flushes pending messages and releases the connection.
	Close() error
}
