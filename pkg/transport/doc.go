// Package transport provides the connectionless datagram front end for
// device provisioning.
//
// The listener reads provisioning envelopes (pkg/wire) from a UDP socket and
// handles each datagram in its own goroutine, so a slow request cannot delay
// others. The transport is lossy by design: the service performs no retries,
// and a device that receives no reply is expected to resend. Receive-loop
// errors are logged and the loop resumes after a short backoff; a handler
// failure never stops intake.
package transport
