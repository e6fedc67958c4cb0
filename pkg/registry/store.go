package registry

import (
	"context"
	"time"
)

// Registration carries the fields written when a device first registers.
// DeviceUUID and DeviceID are required; the rest are descriptive.
type Registration struct {
	DeviceUUID string
	DeviceID   string
	MACAddress string
	DeviceType string
}

// Store is the device registry: registration state plus the token-issuance
// audit trail. Implementations must be safe for concurrent use.
type Store interface {
	// IsRegistered reports whether the device uuid has a registered record.
	// Unknown uuids report false with no error.
	IsRegistered(ctx context.Context, deviceUUID string) (bool, error)

	// GetDevice returns the device record for the uuid, or ErrNotFound.
	GetDevice(ctx context.Context, deviceUUID string) (*Device, error)

	// RegisterDevice registers a device. Registration is idempotent: if the
	// uuid is already registered the call succeeds without modifying the
	// existing record. Concurrent calls for the same uuid result in exactly
	// one record; RegisteredAt is set once and never updated.
	RegisterDevice(ctx context.Context, reg Registration) error

	// LogTokenIssuance appends an audit entry for an issued token. A failure
	// is returned to the caller, never silently dropped.
	LogTokenIssuance(ctx context.Context, deviceID, tokenID string, expiresAt time.Time) error

	// Issuances returns the audit entries for a device, newest first.
	Issuances(ctx context.Context, deviceID string) ([]Issuance, error)

	// Close releases the underlying storage.
	Close() error
}
