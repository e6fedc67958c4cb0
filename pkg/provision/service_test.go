package provision

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cyd-home/provisiond/pkg/registry"
	"github.com/cyd-home/provisiond/pkg/token"
	"github.com/cyd-home/provisiond/pkg/validator"
	"github.com/cyd-home/provisiond/pkg/wire"
)

var testBroker = BrokerInfo{Host: "broker.local", Port: 1883, SecurePort: 8883}

func newTestService(t *testing.T, store *registry.MemoryStore, vconf validator.Config) *Service {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{
		Secret: []byte("test-secret"),
		TTL:    45 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	return NewService(validator.New(vconf, store), issuer, store, testBroker, slog.Default())
}

func validRequest() Request {
	return Request{
		DeviceID:    "cyd-kitchen",
		DeviceType:  "cyd",
		MACAddress:  "AA:BB:CC:DD:EE:FF",
		RequestType: wire.RequestTypeMQTTConfig,
	}
}

func TestProvisionSuccess(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(t, store, validator.Config{})

	before := time.Now()
	grant, err := svc.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if grant.Token == "" || grant.TokenID == "" {
		t.Fatal("grant missing token or token id")
	}
	if grant.BrokerHost != "broker.local" || grant.BrokerPort != 1883 {
		t.Errorf("broker info = %s:%d", grant.BrokerHost, grant.BrokerPort)
	}
	if grant.BrokerUsername != BrokerUsername {
		t.Errorf("username = %q, want %q", grant.BrokerUsername, BrokerUsername)
	}

	// Expiry is issuance time plus the configured TTL.
	wantMin := before.Add(45 * time.Minute).Add(-2 * time.Second)
	wantMax := time.Now().Add(45 * time.Minute)
	if grant.ExpiresAt.Before(wantMin) || grant.ExpiresAt.After(wantMax) {
		t.Errorf("ExpiresAt = %v, want within [%v, %v]", grant.ExpiresAt, wantMin, wantMax)
	}

	// Exactly one device record, registered.
	uuid := DeviceUUID("AA:BB:CC:DD:EE:FF")
	dev, err := store.GetDevice(context.Background(), uuid)
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if dev.Status != registry.StatusRegistered {
		t.Errorf("device status = %v", dev.Status)
	}

	// Exactly one audit entry, with the grant's token id.
	issuances, err := store.Issuances(context.Background(), "cyd-kitchen")
	if err != nil {
		t.Fatalf("Issuances failed: %v", err)
	}
	if len(issuances) != 1 {
		t.Fatalf("got %d issuances, want 1", len(issuances))
	}
	if issuances[0].TokenID != grant.TokenID {
		t.Errorf("audit token id = %q, want %q", issuances[0].TokenID, grant.TokenID)
	}
	if !issuances[0].ExpiresAt.Equal(grant.ExpiresAt.UTC()) {
		t.Errorf("audit expiry = %v, want %v", issuances[0].ExpiresAt, grant.ExpiresAt)
	}
}

func TestProvisionMissingField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"device_id", func(r *Request) { r.DeviceID = "" }},
		{"device_type", func(r *Request) { r.DeviceType = "  " }},
		{"mac_address", func(r *Request) { r.MACAddress = "" }},
		{"request_type", func(r *Request) { r.RequestType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := registry.NewMemoryStore()
			svc := newTestService(t, store, validator.Config{})

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Provision(context.Background(), req)
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("Provision = %v, want ErrMissingField", err)
			}
			// No registry mutation on rejection.
			if store.DeviceCount() != 0 || store.IssuanceCount() != 0 {
				t.Error("rejected request mutated the registry")
			}
		})
	}
}

func TestProvisionUnsupportedRequestType(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(t, store, validator.Config{})

	req := validRequest()
	req.RequestType = "ping"

	_, err := svc.Provision(context.Background(), req)
	if !errors.Is(err, ErrUnsupportedRequestType) {
		t.Errorf("Provision = %v, want ErrUnsupportedRequestType", err)
	}
	if errors.Is(err, ErrMissingField) {
		t.Error("unsupported request type must be distinct from missing field")
	}
	if store.IssuanceCount() != 0 {
		t.Error("no token may be issued for an unsupported request type")
	}
}

func TestProvisionDeniedDevice(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(t, store, validator.Config{
		AllowedDeviceTypes: []string{"esp32"},
	})

	_, err := svc.Provision(context.Background(), validRequest())
	if !errors.Is(err, ErrDeviceDenied) {
		t.Errorf("Provision = %v, want ErrDeviceDenied", err)
	}
	if store.IssuanceCount() != 0 {
		t.Error("denied device must not reach the issuer")
	}
}

func TestProvisionAuditFailureBlocksIssuance(t *testing.T) {
	store := registry.NewMemoryStore()
	store.FailIssuance = registry.ErrStorage
	svc := newTestService(t, store, validator.Config{})

	grant, err := svc.Provision(context.Background(), validRequest())
	if !errors.Is(err, registry.ErrStorage) {
		t.Errorf("Provision = %v, want ErrStorage", err)
	}
	if grant != nil {
		t.Error("no token may be returned without an audit entry")
	}
}

func TestProvisionIdempotentReprovision(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(t, store, validator.Config{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Provision(context.Background(), validRequest()); err != nil {
			t.Fatalf("Provision #%d failed: %v", i+1, err)
		}
	}

	if store.DeviceCount() != 1 {
		t.Errorf("got %d device records, want 1", store.DeviceCount())
	}
	// Every provision issues a fresh token with its own audit entry.
	if store.IssuanceCount() != 3 {
		t.Errorf("got %d issuances, want 3", store.IssuanceCount())
	}
}

func TestDeviceUUIDStable(t *testing.T) {
	a := DeviceUUID("AA:BB:CC:DD:EE:FF")
	b := DeviceUUID("aa:bb:cc:dd:ee:ff")
	c := DeviceUUID(" AA:BB:CC:DD:EE:FF ")
	if a != b || a != c {
		t.Errorf("uuid derivation not stable across formatting: %s / %s / %s", a, b, c)
	}
	if a == DeviceUUID("11:22:33:44:55:66") {
		t.Error("distinct MACs must derive distinct uuids")
	}
}
