package registry

import (
	"errors"
	"time"
)

// DeviceStatus is the registration state of a device.
type DeviceStatus uint8

const (
	// StatusUnregistered means the device has never completed registration.
	StatusUnregistered DeviceStatus = 0

	// StatusRegistered means the device is registered and may be provisioned.
	StatusRegistered DeviceStatus = 1

	// StatusRevoked means the device has been administratively revoked.
	StatusRevoked DeviceStatus = 2
)

// String returns the status name.
func (s DeviceStatus) String() string {
	switch s {
	case StatusUnregistered:
		return "UNREGISTERED"
	case StatusRegistered:
		return "REGISTERED"
	case StatusRevoked:
		return "REVOKED"
	default:
		return "UNKNOWN"
	}
}

// Device is a registered device record. DeviceUUID is the unique key;
// DeviceID may repeat across re-provisioning of replaced hardware.
type Device struct {
	DeviceUUID   string
	DeviceID     string
	MACAddress   string
	DeviceType   string
	Status       DeviceStatus
	RegisteredAt time.Time
}

// Issuance is an append-only audit record, one per issued token.
type Issuance struct {
	TokenID   string
	DeviceID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store errors.
var (
	// ErrNotFound indicates the device uuid has no record.
	ErrNotFound = errors.New("device not found")

	// ErrStorage indicates the storage layer failed; distinct from not-found.
	ErrStorage = errors.New("registry storage error")
)
