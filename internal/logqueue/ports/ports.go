// Package ports defines the durable destination for validation logs.
package ports

import (
	"context"

	"mailguard/internal/logqueue/models"
)

// Sink durably stores a batch of logs. A batch is accepted or rejected as a
// whole, and writing a log whose id is already stored is a no-op.
type Sink interface {
	WriteBatch(ctx context.Context, logs []models.ValidationLog) error
}
