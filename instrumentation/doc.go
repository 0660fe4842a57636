// Package instrumentation provides OpenTelemetry metrics and tracing for the
// authorization server. When disabled it falls back to no-op providers with
// zero overhead, so every component can treat instrumentation as optional.
package instrumentation
