package numbering

import (
	"context"

	"github.com/cabfleet/cabfleet/internal/types"
)

// Repository defines the interface for number sequence persistence. The
// tenant is always taken from the context.
type Repository interface {
	// GetCurrent returns the last issued value for the key, 0 when the
	// sequence row does not exist yet. Read-only, no lock.
	GetCurrent(ctx context.Context, documentType types.DocumentType, period string) (int64, error)

	// GetOrCreateForUpdate returns the sequence row for the key, creating it
	// with current = 0 when absent, and locks it for the duration of the
	// ambient transaction. Concurrent allocators for the same key serialize
	// here; different tenants or periods never contend.
	GetOrCreateForUpdate(ctx context.Context, documentType types.DocumentType, period string) (*NumberSequence, error)

	// Save persists the counter value. Must run inside the same transaction
	// that acquired the row.
	Save(ctx context.Context, seq *NumberSequence) error
}
