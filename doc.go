// Package oauth implements the server side of OAuth 2.0 (RFC 6749): an
// authorization server issuing opaque bearer tokens through the
// authorization-code, password, client-credentials, and refresh-token
// grants, token revocation (RFC 7009), and a resource-server gate for
// validating bearer tokens (RFC 6750).
//
// The core is transport-neutral: AuthorizationServer and ResourceServer
// consume a Request abstraction and produce Response values. Handler
// adapts them to net/http. Persistence is behind the storage interfaces,
// with in-memory and Valkey backends provided.
package oauth
