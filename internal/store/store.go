// Package store defines the contract the core needs from the customer-record
// store: paged listing, lookup by external id, and version-guarded attribute
// updates. Durable state lives here exclusively; the core never caches records
// across requests.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("customer record not found")
	ErrVersionConflict = errors.New("customer record version conflict")
)

// Record is one customer as the store hands it to the core: an opaque
// attribute map plus the version stamp guarding updates.
type Record struct {
	ExternalID string
	Version    int64
	Attributes map[string]any
}

type Store interface {
	// ListPage returns the page at offset and the total count. The total is
	// stable enough for a caller to snapshot at the start of a scan.
	ListPage(ctx context.Context, offset, limit int) ([]Record, int64, error)

	FindByExternalID(ctx context.Context, externalID string) (Record, error)

	// UpdateAttributes merges patch into the record's top-level attribute keys
	// iff the stored version still equals version. A stale version returns
	// ErrVersionConflict and writes nothing.
	UpdateAttributes(ctx context.Context, externalID string, version int64, patch map[string]any) error
}
