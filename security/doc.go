// Package security provides the security primitives used by the authorization
// server: opaque token generation, constant-time comparison, audit logging,
// per-identifier rate limiting, response security headers, and optional
// encryption at rest for stored owner references.
package security
