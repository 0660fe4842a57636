package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Common attribute keys used across metrics and spans
const (
	AttrGrantType = "oauth.grant_type"
	AttrTokenKind = "oauth.token_kind"
	AttrClientID  = "oauth.client_id"
	AttrErrorKind = "oauth.error_kind"
	AttrEndpoint  = "http.endpoint"
	AttrOperation = "storage.operation"
	AttrResult    = "result"
)

// Metrics holds all metric instruments for the authorization server
type Metrics struct {
	// HTTP layer
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Grant / token lifecycle
	TokensIssued      metric.Int64Counter
	TokensRevoked     metric.Int64Counter
	GrantRequests     metric.Int64Counter
	GrantFailures     metric.Int64Counter
	RateLimitExceeded metric.Int64Counter

	// Storage layer
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	storageMeter := inst.Meter("storage")

	var err error
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"oauth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"oauth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.TokensIssued, err = serverMeter.Int64Counter(
		"oauth.tokens.issued",
		metric.WithDescription("Number of tokens issued, by kind and grant type"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.issued counter: %w", err)
	}

	m.TokensRevoked, err = serverMeter.Int64Counter(
		"oauth.tokens.revoked",
		metric.WithDescription("Number of tokens revoked"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.revoked counter: %w", err)
	}

	m.GrantRequests, err = serverMeter.Int64Counter(
		"oauth.grant.requests",
		metric.WithDescription("Number of grant requests handled, by grant type"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant.requests counter: %w", err)
	}

	m.GrantFailures, err = serverMeter.Int64Counter(
		"oauth.grant.failures",
		metric.WithDescription("Number of rejected grant requests, by error kind"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant.failures counter: %w", err)
	}

	m.RateLimitExceeded, err = serverMeter.Int64Counter(
		"oauth.ratelimit.exceeded",
		metric.WithDescription("Number of requests rejected by rate limiting"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.exceeded counter: %w", err)
	}

	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"oauth.storage.operations.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operations.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"oauth.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records a handled HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(ctx context.Context, endpoint, method string, status int, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrEndpoint, endpoint),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, durationMs, attrs)
}

// RecordTokenIssued records an issued token
func (m *Metrics) RecordTokenIssued(ctx context.Context, kind, grantType string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTokenKind, kind),
		attribute.String(AttrGrantType, grantType),
	))
}

// RecordTokenRevoked records a revoked token
func (m *Metrics) RecordTokenRevoked(ctx context.Context, kind string) {
	m.TokensRevoked.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTokenKind, kind),
	))
}

// RecordGrantRequest records a grant request reaching a registered grant
func (m *Metrics) RecordGrantRequest(ctx context.Context, grantType string) {
	m.GrantRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
	))
}

// RecordRateLimitExceeded records a request rejected by the rate limiter
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, endpoint string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEndpoint, endpoint),
	))
}

// RecordGrantFailure records a rejected grant request
func (m *Metrics) RecordGrantFailure(ctx context.Context, grantType, errorKind string) {
	m.GrantFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrErrorKind, errorKind),
	))
}

// RecordStorageOperation records a storage operation with count and duration
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrResult, result),
	)
	m.StorageOperationTotal.Add(ctx, 1, attrs)
	m.StorageOperationDuration.Record(ctx, durationMs, attrs)
}
