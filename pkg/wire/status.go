package wire

// Status represents a response status code. The error codes mirror the HTTP
// rejection categories of the provisioning endpoint.
type Status uint8

const (
	// StatusSuccess indicates a credential was issued.
	StatusSuccess Status = 0

	// StatusMissingField indicates a required request field was absent or blank.
	StatusMissingField Status = 1

	// StatusUnsupportedRequestType indicates requestType was not "mqtt_config".
	StatusUnsupportedRequestType Status = 2

	// StatusNotAuthorized indicates the validator denied the device.
	StatusNotAuthorized Status = 3

	// StatusMalformedRequest indicates the datagram was not a decodable envelope.
	StatusMalformedRequest Status = 4

	// StatusInternal indicates an unexpected failure, including registry errors.
	StatusInternal Status = 5
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusMissingField:
		return "MISSING_FIELD"
	case StatusUnsupportedRequestType:
		return "UNSUPPORTED_REQUEST_TYPE"
	case StatusNotAuthorized:
		return "NOT_AUTHORIZED"
	case StatusMalformedRequest:
		return "MALFORMED_REQUEST"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}
