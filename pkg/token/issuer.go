// Package token issues short-lived signed credentials for the MQTT broker.
//
// Tokens are HS256 JWTs carrying the device id as subject, the configured
// issuer and audience, and a unique jti used as the audit token id. The
// issuer performs no I/O: a credential is a pure function of configuration,
// inputs, and the clock, so it is safe for unsynchronized concurrent use.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Defaults matching the service's standard deployment.
const (
	DefaultIssuer   = "TokenProvisioningService"
	DefaultAudience = "CYD-MQTT-Devices"
	DefaultTTL      = 60 * time.Minute
)

// Issuer errors.
var (
	// ErrNoSecret indicates the issuer was constructed without a signing secret.
	ErrNoSecret = errors.New("signing secret is required")

	// ErrInvalidToken indicates a token failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Config configures an Issuer.
type Config struct {
	// Secret is the HMAC signing key. Required.
	Secret []byte

	// Issuer is the iss claim. Defaults to DefaultIssuer.
	Issuer string

	// Audience is the aud claim. Defaults to DefaultAudience.
	Audience string

	// TTL is the credential lifetime. Defaults to DefaultTTL.
	TTL time.Duration
}

// Credential is one issued token plus the metadata recorded in the audit log.
type Credential struct {
	// Token is the signed compact JWT handed to the device.
	Token string

	// TokenID is the jti claim, unique per issuance.
	TokenID string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the verified contents of a provisioning token.
type Claims struct {
	jwt.RegisteredClaims

	// DeviceType is the device type declared at provisioning time.
	DeviceType string `json:"device_type,omitempty"`
}

// Issuer signs time-bounded broker credentials.
type Issuer struct {
	config Config

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewIssuer creates a token issuer. The signing secret is required; other
// fields default per the Config documentation.
func NewIssuer(config Config) (*Issuer, error) {
	if len(config.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.Audience == "" {
		config.Audience = DefaultAudience
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Issuer{config: config, now: time.Now}, nil
}

// TTL returns the configured credential lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.config.TTL
}

// Generate issues a fresh credential for the device. The token id is unique
// per call, independent of the device id, so re-issuance to the same device
// never collides with a prior audit entry.
func (i *Issuer) Generate(deviceID, deviceType string) (*Credential, error) {
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.config.TTL)
	tokenID := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
		DeviceType: deviceType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Credential{
		Token:     signed,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify parses a token and checks its signature, expiry, issuer, and
// audience. Any token not produced with this issuer's secret fails.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return i.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithAudience(i.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
