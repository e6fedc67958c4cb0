package wire

import (
	"errors"
	"fmt"
	"strings"
)

// RequestTypeMQTTConfig is the only request type the service provisions.
const RequestTypeMQTTConfig = "mqtt_config"

// Envelope errors.
var (
	// ErrMalformedEnvelope indicates the datagram was not decodable CBOR.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrEnvelopeTooLarge indicates the envelope exceeds MaxDatagramSize.
	ErrEnvelopeTooLarge = errors.New("envelope exceeds maximum datagram size")

	// ErrMissingField indicates a required request field is absent or blank.
	ErrMissingField = errors.New("missing required field")

	// ErrUnsupportedRequestType indicates requestType is not mqtt_config.
	ErrUnsupportedRequestType = errors.New("unsupported request type")
)

// Request is a provisioning request as carried in a UDP datagram.
//
// CBOR encoding:
//
//	{
//	  1: deviceId,     // text
//	  2: deviceType,   // text
//	  3: macAddress,   // text
//	  4: requestType   // text: must be "mqtt_config"
//	}
type Request struct {
	DeviceID    string `cbor:"1,keyasint"`
	DeviceType  string `cbor:"2,keyasint"`
	MACAddress  string `cbor:"3,keyasint"`
	RequestType string `cbor:"4,keyasint"`
}

// Validate checks that all four fields are present and the request type is
// supported. A blank field and an unsupported request type are distinct
// errors so transports can report them as different status codes.
func (r *Request) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"deviceId", r.DeviceID},
		{"deviceType", r.DeviceType},
		{"macAddress", r.MACAddress},
		{"requestType", r.RequestType},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	if r.RequestType != RequestTypeMQTTConfig {
		return fmt.Errorf("%w: %q", ErrUnsupportedRequestType, r.RequestType)
	}
	return nil
}

// Response is a provisioning response as carried in a UDP datagram.
//
// CBOR encoding:
//
//	{
//	  1: status,       // uint8: 0=success, or error code
//	  2: error,        // text: human-readable reason (errors only)
//	  3: token,        // text: broker credential (success only)
//	  4: brokerHost,   // text (success only)
//	  5: brokerPort    // uint16 (success only)
//	}
type Response struct {
	Status     Status `cbor:"1,keyasint"`
	Error      string `cbor:"2,keyasint,omitempty"`
	Token      string `cbor:"3,keyasint,omitempty"`
	BrokerHost string `cbor:"4,keyasint,omitempty"`
	BrokerPort uint16 `cbor:"5,keyasint,omitempty"`
}

// IsSuccess returns true if the response carries a credential grant.
func (r *Response) IsSuccess() bool {
	return r.Status == StatusSuccess
}
