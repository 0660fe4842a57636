package oauth

import (
	"log/slog"

	"github.com/giantswarm/oauth2-server/instrumentation"
)

// Config holds the HTTP handler configuration
type Config struct {
	// ServerURL is the public base URL of this server. Used for security
	// headers (HSTS is only set for https URLs).
	ServerURL string

	// RateLimit configures per-IP rate limiting for the OAuth endpoints
	RateLimit RateLimitConfig

	// EnableAuditLogging enables security audit logging.
	// Logs token operations and auth failures with sensitive data hashed.
	EnableAuditLogging bool

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation is optional OpenTelemetry instrumentation for HTTP
	// metrics and traces
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool
}
