package provision

import "errors"

// Pipeline errors, recovered at the transport boundary and turned into the
// corresponding response or wire status code.
var (
	// ErrMissingField indicates a required request field is absent or blank.
	ErrMissingField = errors.New("missing required field")

	// ErrUnsupportedRequestType indicates requestType is not mqtt_config.
	ErrUnsupportedRequestType = errors.New("unsupported request type")

	// ErrDeviceDenied indicates the validator rejected the device.
	ErrDeviceDenied = errors.New("device validation failed")

	// ErrMalformedRequest indicates the request body or envelope was not
	// decodable.
	ErrMalformedRequest = errors.New("malformed request")
)
