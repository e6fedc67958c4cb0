package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/cyd-home/provisiond/pkg/registry"
)

func TestValidateAllowsByDefault(t *testing.T) {
	v := New(Config{}, nil)
	if err := v.Validate(context.Background(), "uuid-1", "cyd-1", "cyd"); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidateStructural(t *testing.T) {
	v := New(Config{}, nil)

	tests := []struct {
		name               string
		deviceID, deviceType string
	}{
		{"blank device id", "", "cyd"},
		{"whitespace device id", "   ", "cyd"},
		{"blank device type", "cyd-1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), "uuid-1", tt.deviceID, tt.deviceType)
			if !errors.Is(err, ErrDenied) {
				t.Errorf("Validate = %v, want ErrDenied", err)
			}
		})
	}
}

func TestValidateAllowList(t *testing.T) {
	v := New(Config{AllowedDeviceTypes: []string{"cyd", "esp32"}}, nil)

	if err := v.Validate(context.Background(), "uuid-1", "dev-1", "cyd"); err != nil {
		t.Errorf("allowed type rejected: %v", err)
	}
	err := v.Validate(context.Background(), "uuid-1", "dev-1", "thermostat")
	if !errors.Is(err, ErrDenied) {
		t.Errorf("Validate(unlisted type) = %v, want ErrDenied", err)
	}
}

func TestValidateRevokedDevice(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	if err := store.RegisterDevice(ctx, registry.Registration{
		DeviceUUID: "uuid-1", DeviceID: "cyd-1",
	}); err != nil {
		t.Fatalf("RegisterDevice failed: %v", err)
	}

	v := New(Config{}, store)

	// Registered device passes.
	if err := v.Validate(ctx, "uuid-1", "cyd-1", "cyd"); err != nil {
		t.Fatalf("registered device rejected: %v", err)
	}

	if err := store.SetStatus(context.Background(), "uuid-1", registry.StatusRevoked); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	err := v.Validate(ctx, "uuid-1", "cyd-1", "cyd")
	if !errors.Is(err, ErrDenied) {
		t.Errorf("Validate(revoked) = %v, want ErrDenied", err)
	}

	// Validation never mutates the registry.
	if store.DeviceCount() != 1 {
		t.Errorf("validator mutated the registry: %d records", store.DeviceCount())
	}
}

func TestValidateUnknownDeviceAllowed(t *testing.T) {
	v := New(Config{}, registry.NewMemoryStore())
	if err := v.Validate(context.Background(), "uuid-new", "cyd-new", "cyd"); err != nil {
		t.Errorf("Validate(unknown device) = %v, want nil", err)
	}
}
