package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cyd-home/provisiond/pkg/registry"
	"github.com/cyd-home/provisiond/pkg/token"
	"github.com/cyd-home/provisiond/pkg/validator"
	"github.com/cyd-home/provisiond/pkg/wire"
)

// deviceNamespace is the UUIDv5 namespace for deriving the stable device
// uuid from the MAC address. Changing it would re-key the registry.
var deviceNamespace = uuid.MustParse("37e6f1cc-b0a9-4cd3-8e35-2c1a527fb6f1")

// DeviceUUID derives the stable registry key for a device from its MAC
// address. The same hardware always maps to the same uuid, which is what
// makes re-provisioning idempotent.
func DeviceUUID(macAddress string) string {
	normalized := strings.ToLower(strings.TrimSpace(macAddress))
	return uuid.NewSHA1(deviceNamespace, []byte(normalized)).String()
}

// Request is a transport-agnostic provisioning request. All four fields are
// required and non-blank; RequestType must be wire.RequestTypeMQTTConfig.
type Request struct {
	DeviceID    string
	DeviceType  string
	MACAddress  string
	RequestType string
}

// Grant is a successful provisioning result: the credential plus the broker
// connection parameters the device needs.
type Grant struct {
	Token          string
	TokenID        string
	ExpiresAt      time.Time
	BrokerHost     string
	BrokerPort     uint16
	BrokerUsername string
}

// BrokerInfo describes the co-located MQTT broker advertised to devices.
type BrokerInfo struct {
	Host       string
	Port       uint16
	SecurePort uint16
	UseTLS     bool
}

// EffectivePort returns the port devices should connect to, honoring the
// TLS setting.
func (b BrokerInfo) EffectivePort() uint16 {
	if b.UseTLS && b.SecurePort != 0 {
		return b.SecurePort
	}
	return b.Port
}

// BrokerUsername is the fixed username devices use with an issued token as
// password.
const BrokerUsername = "cyd"

// Service orchestrates validation, token issuance, and registry updates.
// It holds no request state of its own; the registry is the only shared
// mutable state.
type Service struct {
	validator *validator.Validator
	issuer    *token.Issuer
	store     registry.Store
	broker    BrokerInfo
	logger    *slog.Logger
}

// NewService builds the provisioning pipeline from its collaborators.
func NewService(v *validator.Validator, issuer *token.Issuer, store registry.Store, broker BrokerInfo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		validator: v,
		issuer:    issuer,
		store:     store,
		broker:    broker,
		logger:    logger,
	}
}

// Broker returns the broker connection info included in grants.
func (s *Service) Broker() BrokerInfo {
	return s.broker
}

// Provision runs the full pipeline for one request. Rejections are reported
// through the package's sentinel errors; registry failures surface as
// registry.ErrStorage. No registry mutation happens for rejected requests,
// and no token is returned unless its audit entry was written.
func (s *Service) Provision(ctx context.Context, req Request) (*Grant, error) {
	if err := s.checkFields(req); err != nil {
		return nil, err
	}

	deviceUUID := DeviceUUID(req.MACAddress)

	s.logger.Debug("provision request",
		"device_id", req.DeviceID,
		"device_type", req.DeviceType,
		"mac_address", req.MACAddress,
		"device_uuid", deviceUUID)

	if err := s.validator.Validate(ctx, deviceUUID, req.DeviceID, req.DeviceType); err != nil {
		if errors.Is(err, validator.ErrDenied) {
			return nil, fmt.Errorf("%w: %v", ErrDeviceDenied, err)
		}
		return nil, err
	}

	cred, err := s.issuer.Generate(req.DeviceID, req.DeviceType)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	if err := s.store.RegisterDevice(ctx, registry.Registration{
		DeviceUUID: deviceUUID,
		DeviceID:   req.DeviceID,
		MACAddress: req.MACAddress,
		DeviceType: req.DeviceType,
	}); err != nil {
		return nil, err
	}

	// The audit entry must exist before the token leaves the pipeline. A
	// failed write fails the whole issuance.
	if err := s.store.LogTokenIssuance(ctx, req.DeviceID, cred.TokenID, cred.ExpiresAt); err != nil {
		return nil, err
	}

	s.logger.Debug("token issued",
		"device_id", req.DeviceID,
		"token_id", cred.TokenID,
		"expires_at", cred.ExpiresAt)

	return &Grant{
		Token:          cred.Token,
		TokenID:        cred.TokenID,
		ExpiresAt:      cred.ExpiresAt,
		BrokerHost:     s.broker.Host,
		BrokerPort:     s.broker.EffectivePort(),
		BrokerUsername: BrokerUsername,
	}, nil
}

// checkFields rejects missing fields before anything else runs, and an
// unsupported request type as a distinct outcome after that.
func (s *Service) checkFields(req Request) error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"device_id", req.DeviceID},
		{"device_type", req.DeviceType},
		{"mac_address", req.MACAddress},
		{"request_type", req.RequestType},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	if req.RequestType != wire.RequestTypeMQTTConfig {
		return fmt.Errorf("%w: %q", ErrUnsupportedRequestType, req.RequestType)
	}
	return nil
}
