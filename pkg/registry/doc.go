// Package registry stores device registration state and the token-issuance
// audit trail.
//
// The Store interface is the only state shared between concurrent request
// handlers. Registration is idempotent: registering an already-registered
// device uuid succeeds without modifying the existing record, and concurrent
// registrations of the same uuid collapse to exactly one record. Every issued
// token must be logged through LogTokenIssuance before it is handed to a
// device; a failed audit write is surfaced as an error so the caller can
// withhold the token.
//
// Two implementations are provided: SQLiteStore for durable storage and
// MemoryStore for tests and ephemeral runs.
package registry
