package discovery

import "time"

// Service type constants for mDNS.
const (
	// ServiceTypeProvisioning is the service type for the provisioning
	// endpoint.
	ServiceTypeProvisioning = "_cyd-provision._tcp"

	// ServiceTypeBroker is the standard service type for an MQTT broker.
	ServiceTypeBroker = "_mqtt._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// Instance names and TXT defaults.
const (
	// ProvisioningInstanceName is the advertised provisioning instance name.
	ProvisioningInstanceName = "CYD Provisioning"

	// BrokerInstanceName is the advertised broker instance name.
	BrokerInstanceName = "CYD MQTT Broker"

	// ProtocolVersion is the provisioning protocol version TXT value.
	ProtocolVersion = "1.0"
)

// TXT record keys.
const (
	TXTKeyVersion     = "version"     // provisioning protocol version
	TXTKeyInstanceID  = "uuid"        // per-process instance identifier
	TXTKeyDescription = "description" // broker record description
)

// DefaultTTL is the DNS record TTL.
const DefaultTTL = 120 * time.Second

// ProvisioningInfo describes the provisioning service record.
type ProvisioningInfo struct {
	// Port is the advertised provisioning endpoint port.
	Port uint16

	// Version is the protocol version TXT value. Defaults to ProtocolVersion.
	Version string

	// InstanceID is the per-process instance identifier TXT value.
	InstanceID string
}

// BrokerInfo describes the broker presence record. The broker is assumed
// co-located with the provisioning service.
type BrokerInfo struct {
	// Port is the broker's listen port.
	Port uint16

	// Description is a descriptive TXT value.
	Description string
}

// State is the advertiser lifecycle state.
type State uint8

const (
	StateStarting State = iota
	StateAdvertising
	StateUnadvertising
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateAdvertising:
		return "ADVERTISING"
	case StateUnadvertising:
		return "UNADVERTISING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
