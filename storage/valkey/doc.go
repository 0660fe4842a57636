// Package valkey provides a Valkey-backed implementation of all storage
// interfaces, suitable for multi-instance deployments. Token expiry is
// enforced natively through key TTLs.
package valkey
