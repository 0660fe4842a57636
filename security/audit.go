package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Event type constants for security audit logging.
const (
	// EventTokenIssued is logged when an access token is issued
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a refresh grant issues a new access token
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is revoked
	EventTokenRevoked = "token_revoked"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventGrantFailure is logged when a grant request is rejected
	EventGrantFailure = "grant_failure"

	// EventClientAuthFailure is logged when client authentication fails
	EventClientAuthFailure = "client_auth_failure"

	// EventClientRegistered is logged when a new client is registered
	EventClientRegistered = "client_registered"

	// EventAccessDenied is logged when resource-owner credential verification fails
	EventAccessDenied = "access_denied"
)

// Auditor handles security event logging with PII protection.
// Owner identifiers are hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	OwnerID   string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"owner_id_hash", hashForLogging(event.OwnerID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs when an access token is issued
func (a *Auditor) LogTokenIssued(ownerID, clientID, grantType, scope string) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		OwnerID:  ownerID,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"scope":      scope,
		},
	})
}

// LogTokenRevoked logs when a token is revoked
func (a *Auditor) LogTokenRevoked(ownerID, clientID, tokenTypeHint string) {
	a.LogEvent(Event{
		Type:     EventTokenRevoked,
		OwnerID:  ownerID,
		ClientID: clientID,
		Details: map[string]any{
			"token_type_hint": tokenTypeHint,
		},
	})
}

// LogGrantFailure logs a rejected grant request
func (a *Auditor) LogGrantFailure(clientID, grantType, reason string) {
	a.LogEvent(Event{
		Type:     EventGrantFailure,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"reason":     reason,
		},
	})
}

// LogClientAuthFailure logs a client authentication failure
func (a *Auditor) LogClientAuthFailure(clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventClientAuthFailure,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogClientRegistered logs when a new client is registered
func (a *Auditor) LogClientRegistered(clientID string, confidential bool) {
	a.LogEvent(Event{
		Type:     EventClientRegistered,
		ClientID: clientID,
		Details: map[string]any{
			"confidential": confidential,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
