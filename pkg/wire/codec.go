package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxDatagramSize is the largest envelope accepted or produced, chosen to
// fit a single UDP datagram under a conservative Ethernet MTU.
const MaxDatagramSize = 1400

// encMode is the CBOR encoder mode for provisioning messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for provisioning messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeRequest encodes a provisioning request to CBOR bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	data, err := Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if len(data) > MaxDatagramSize {
		return nil, fmt.Errorf("%w: request is %d bytes", ErrEnvelopeTooLarge, len(data))
	}
	return data, nil
}

// DecodeRequest decodes CBOR bytes into a provisioning request.
// Undecodable input returns ErrMalformedEnvelope; field-level problems are
// left to Request.Validate so the caller can distinguish the two.
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) > MaxDatagramSize {
		return nil, fmt.Errorf("%w: request is %d bytes", ErrEnvelopeTooLarge, len(data))
	}
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &req, nil
}

// EncodeResponse encodes a provisioning response to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	if len(data) > MaxDatagramSize {
		return nil, fmt.Errorf("%w: response is %d bytes", ErrEnvelopeTooLarge, len(data))
	}
	return data, nil
}

// DecodeResponse decodes CBOR bytes into a provisioning response.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &resp, nil
}
