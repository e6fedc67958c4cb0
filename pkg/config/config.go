// Package config loads the provisioning service configuration.
//
// Configuration is a YAML file; every field has a default matching the
// service's standard deployment, so a minimal file only needs the signing
// secret.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoSecret indicates the configuration is missing the token signing
// secret.
var ErrNoSecret = errors.New("token.secret is required")

// TokenConfig configures credential issuance.
type TokenConfig struct {
	// Secret is the HMAC signing key. Required.
	Secret string `yaml:"secret"`

	// Issuer is the token iss claim.
	Issuer string `yaml:"issuer"`

	// Audience is the token aud claim.
	Audience string `yaml:"audience"`

	// TTL is the credential lifetime.
	TTL time.Duration `yaml:"ttl"`
}

// BrokerConfig describes the co-located MQTT broker.
type BrokerConfig struct {
	Host       string `yaml:"host"`
	Port       uint16 `yaml:"port"`
	SecurePort uint16 `yaml:"secure_port"`
	UseTLS     bool   `yaml:"use_tls"`
}

// DiscoveryConfig configures mDNS advertising.
type DiscoveryConfig struct {
	// Enabled controls whether the service advertises itself at all.
	Enabled bool `yaml:"enabled"`

	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string `yaml:"interface"`
}

// ValidationConfig configures the device validator.
type ValidationConfig struct {
	// AllowedDeviceTypes restricts provisioning to the listed device types.
	// Empty means all types are allowed.
	AllowedDeviceTypes []string `yaml:"allowed_device_types"`
}

// Config is the full service configuration.
type Config struct {
	Token      TokenConfig      `yaml:"token"`
	Broker     BrokerConfig     `yaml:"broker"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Validation ValidationConfig `yaml:"validation"`

	// HTTPPort is the provisioning HTTP endpoint port.
	HTTPPort uint16 `yaml:"http_port"`

	// UDPPort is the provisioning datagram listener port.
	UDPPort uint16 `yaml:"udp_port"`

	// RegistryPath is the SQLite registry database path.
	RegistryPath string `yaml:"registry_path"`
}

// Default returns the configuration defaults. The signing secret has no
// default and must be provided.
func Default() Config {
	return Config{
		Token: TokenConfig{
			Issuer:   "TokenProvisioningService",
			Audience: "CYD-MQTT-Devices",
			TTL:      60 * time.Minute,
		},
		Broker: BrokerConfig{
			Host:       "localhost",
			Port:       1883,
			SecurePort: 8883,
			UseTLS:     false,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		HTTPPort:     8080,
		UDPPort:      12345,
		RegistryPath: "devices.db",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return ErrNoSecret
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("token.ttl must be positive, got %v", c.Token.TTL)
	}
	return nil
}
