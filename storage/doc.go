// Package storage provides interfaces and types for persisting OAuth
// clients, scopes, and tokens.
//
// The core engine never issues raw queries; it only calls the operations
// named here and treats any failure as a propagated error. Uniqueness of
// token strings within a kind is ultimately the store's responsibility:
// SaveToken must reject a token string that already exists for its kind.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
//   - storage/valkey: Valkey/Redis-compatible storage for production
package storage
