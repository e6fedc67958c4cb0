// Package provision implements the credential-issuance pipeline shared by
// both transports.
//
// A provisioning request flows through field validation, the device
// validator, the token issuer, and the registry (idempotent registration
// plus the issuance audit entry) before a grant is returned. The audit write
// happens before the caller sees the token: a token without a matching audit
// entry is never handed out.
//
// The HTTP front end in this package maps the pipeline's error taxonomy to
// status codes; the UDP front end in pkg/transport maps it to wire status
// codes.
package provision
