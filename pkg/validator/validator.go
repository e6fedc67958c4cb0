// Package validator decides whether a device may receive a broker credential.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cyd-home/provisiond/pkg/registry"
)

// ErrDenied indicates the device failed validation and must not receive a
// token.
var ErrDenied = errors.New("device validation failed")

// Config configures a Validator.
type Config struct {
	// AllowedDeviceTypes restricts provisioning to the listed device types.
	// Empty means all types are allowed.
	AllowedDeviceTypes []string
}

// Validator applies the device-vetting policy: structural checks, an
// optional device-type allow-list, and denial of revoked devices. It reads
// from the registry but never mutates it.
type Validator struct {
	allowedTypes map[string]bool
	store        registry.Store
}

// New creates a validator. The store is consulted read-only for revocation
// state; it may be nil to skip that check.
func New(config Config, store registry.Store) *Validator {
	v := &Validator{store: store}
	if len(config.AllowedDeviceTypes) > 0 {
		v.allowedTypes = make(map[string]bool, len(config.AllowedDeviceTypes))
		for _, t := range config.AllowedDeviceTypes {
			v.allowedTypes[t] = true
		}
	}
	return v
}

// Validate returns nil if the device may be provisioned, or an error
// wrapping ErrDenied. deviceUUID is the registry key for the device; it is
// looked up to reject revoked devices.
func (v *Validator) Validate(ctx context.Context, deviceUUID, deviceID, deviceType string) error {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(deviceType) == "" {
		return fmt.Errorf("%w: blank device id or type", ErrDenied)
	}

	if v.allowedTypes != nil && !v.allowedTypes[deviceType] {
		return fmt.Errorf("%w: device type %q not allowed", ErrDenied, deviceType)
	}

	if v.store != nil {
		dev, err := v.store.GetDevice(ctx, deviceUUID)
		switch {
		case errors.Is(err, registry.ErrNotFound):
			// Unknown devices are allowed; they register on first provision.
		case err != nil:
			return fmt.Errorf("registry lookup failed: %w", err)
		case dev.Status == registry.StatusRevoked:
			return fmt.Errorf("%w: device is revoked", ErrDenied)
		}
	}

	return nil
}
