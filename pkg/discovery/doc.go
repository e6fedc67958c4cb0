// Package discovery advertises the provisioning service and the co-located
// MQTT broker on the local network via mDNS.
//
// The Runner owns the advertisement lifecycle: it publishes both presence
// records on start, waits for cancellation, and always retracts the records
// and stops the discovery transport on the way out. Discovery is best-effort:
// failures are logged and never take down the provisioning service itself.
package discovery
