package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures the mDNS advertiser.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: DefaultTTL.
	TTL time.Duration
}

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu sync.Mutex

	// Active services
	provisioningServer *zeroconf.Server
	brokerServer       *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &MDNSAdvertiser{config: config}, nil
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// register announces one service record.
func (a *MDNSAdvertiser) register(instance, serviceType string, port int, txt []string) (*zeroconf.Server, error) {
	opts := []zeroconf.ServerOption{
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	}

	server, err := zeroconf.Register(
		instance,
		serviceType,
		Domain,
		port,
		txt,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", serviceType, err)
	}
	return server, nil
}

// AdvertiseProvisioning starts advertising the provisioning endpoint.
func (a *MDNSAdvertiser) AdvertiseProvisioning(ctx context.Context, info *ProvisioningInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if a.provisioningServer != nil {
		a.provisioningServer.Shutdown()
		a.provisioningServer = nil
	}

	version := info.Version
	if version == "" {
		version = ProtocolVersion
	}
	txt := []string{
		fmt.Sprintf("%s=%s", TXTKeyVersion, version),
		fmt.Sprintf("%s=%s", TXTKeyInstanceID, info.InstanceID),
	}

	server, err := a.register(ProvisioningInstanceName, ServiceTypeProvisioning, int(info.Port), txt)
	if err != nil {
		return err
	}
	a.provisioningServer = server
	return nil
}

// AdvertiseBroker starts advertising the broker presence record.
func (a *MDNSAdvertiser) AdvertiseBroker(ctx context.Context, info *BrokerInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.brokerServer != nil {
		a.brokerServer.Shutdown()
		a.brokerServer = nil
	}

	var txt []string
	if info.Description != "" {
		txt = []string{fmt.Sprintf("%s=%s", TXTKeyDescription, info.Description)}
	}

	server, err := a.register(BrokerInstanceName, ServiceTypeBroker, int(info.Port), txt)
	if err != nil {
		return err
	}
	a.brokerServer = server
	return nil
}

// StopProvisioning retracts the provisioning record.
func (a *MDNSAdvertiser) StopProvisioning() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.provisioningServer != nil {
		a.provisioningServer.Shutdown()
		a.provisioningServer = nil
	}
	return nil
}

// StopBroker retracts the broker record.
func (a *MDNSAdvertiser) StopBroker() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.brokerServer != nil {
		a.brokerServer.Shutdown()
		a.brokerServer = nil
	}
	return nil
}

// Shutdown retracts anything still advertised and stops the underlying
// transport. Each zeroconf server owns its own multicast transport, so
// shutting both down releases everything.
func (a *MDNSAdvertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.provisioningServer != nil {
		a.provisioningServer.Shutdown()
		a.provisioningServer = nil
	}
	if a.brokerServer != nil {
		a.brokerServer.Shutdown()
		a.brokerServer = nil
	}
}

// Compile-time interface satisfaction check.
var _ Advertiser = (*MDNSAdvertiser)(nil)
