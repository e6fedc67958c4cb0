// Package wire defines the CBOR datagram envelope for device provisioning.
//
// Requests and responses are encoded as CBOR maps with integer keys to keep
// datagrams small. A request carries the four provisioning fields; a response
// carries either a credential grant or a status code mirroring the HTTP
// rejection categories. Both directions are bounded by MaxDatagramSize so a
// single UDP datagram always fits a conservative MTU.
package wire
