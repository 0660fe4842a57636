package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-server/instrumentation"
	"github.com/giantswarm/oauth2-server/security"
	"github.com/giantswarm/oauth2-server/storage"
)

// tokenContextKey carries the validated access token through middleware
type tokenContextKey struct{}

// Handler adapts the transport-neutral core to net/http. It owns the
// ambient HTTP concerns: rate limiting, security headers, and request
// metrics; all OAuth semantics live in the AuthorizationServer and
// ResourceServer it wraps.
type Handler struct {
	server   *AuthorizationServer
	resource *ResourceServer
	registry *ClientRegistry

	serverURL   string
	trustProxy  bool
	rateLimiter *security.RateLimiter
	logger      *slog.Logger
	inst        *instrumentation.Instrumentation
	tracer      trace.Tracer
}

// NewHandler creates the HTTP adapter around an authorization server and
// a resource server
func NewHandler(server *AuthorizationServer, resource *ResourceServer, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server:     server,
		resource:   resource,
		serverURL:  cfg.ServerURL,
		trustProxy: cfg.RateLimit.TrustProxy,
		logger:     logger,
		inst:       cfg.Instrumentation,
	}

	if cfg.RateLimit.Rate > 0 {
		h.rateLimiter = security.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, logger)
	}
	if cfg.Instrumentation != nil {
		h.tracer = cfg.Instrumentation.Tracer("handler")
	}
	if cfg.EnableAuditLogging {
		auditor := security.NewAuditor(logger, true)
		server.SetAuditor(auditor)
	}

	return h
}

// SetClientRegistry enables the client registration endpoint
func (h *Handler) SetClientRegistry(registry *ClientRegistry) {
	h.registry = registry
}

// Stop releases handler resources
func (h *Handler) Stop() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// Routes returns a mux with the standard endpoint layout
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", h.ServeAuthorize)
	mux.HandleFunc("/token", h.ServeToken)
	mux.HandleFunc("/revoke", h.ServeRevocation)
	if h.registry != nil {
		mux.HandleFunc("/register", h.ServeRegistration)
	}
	return mux
}

// ServeAuthorize serves GET /authorize
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.begin(w, r, "authorize")
	if ctx == nil {
		return
	}

	req, err := RequestFromHTTP(r)
	if err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "malformed request", http.StatusBadRequest)
		done(http.StatusBadRequest)
		return
	}

	// The embedding application authenticates the resource owner before
	// this point and passes the identity along.
	resp := h.server.HandleAuthorizationRequest(ctx, req, r.Header.Get("X-Owner-ID"))
	h.writeResponse(w, resp)
	done(resp.Status())
}

// ServeToken serves POST /token
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.begin(w, r, "token")
	if ctx == nil {
		return
	}

	if r.Method != http.MethodPost {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		done(http.StatusMethodNotAllowed)
		return
	}

	req, err := RequestFromHTTP(r)
	if err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "malformed request", http.StatusBadRequest)
		done(http.StatusBadRequest)
		return
	}

	resp := h.server.HandleTokenRequest(ctx, req, "")
	h.writeResponse(w, resp)
	done(resp.Status())
}

// ServeRevocation serves POST /revoke. OAuth errors surface here directly
// instead of through the 400-JSON convention the other endpoints use.
func (h *Handler) ServeRevocation(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.begin(w, r, "revoke")
	if ctx == nil {
		return
	}

	if r.Method != http.MethodPost {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		done(http.StatusMethodNotAllowed)
		return
	}

	req, err := RequestFromHTTP(r)
	if err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "malformed request", http.StatusBadRequest)
		done(http.StatusBadRequest)
		return
	}

	resp, err := h.server.HandleRevocationRequest(ctx, req)
	if err != nil {
		var oauthErr *OAuthError
		if errors.As(err, &oauthErr) {
			h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
			done(oauthErr.Status)
			return
		}
		h.logger.Error("Revocation request failed", "error", err)
		h.writeError(w, ErrorCodeServerError, "an internal error occurred", http.StatusInternalServerError)
		done(http.StatusInternalServerError)
		return
	}

	h.writeResponse(w, resp)
	done(resp.Status())
}

// ServeRegistration serves POST /register
func (h *Handler) ServeRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.begin(w, r, "register")
	if ctx == nil {
		return
	}

	if r.Method != http.MethodPost {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		done(http.StatusMethodNotAllowed)
		return
	}
	if h.registry == nil {
		http.NotFound(w, r)
		done(http.StatusNotFound)
		return
	}

	var body struct {
		ClientName   string   `json:"client_name"`
		RedirectURIs []string `json:"redirect_uris"`
		Scopes       []string `json:"scopes"`
		Confidential bool     `json:"confidential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "malformed JSON body", http.StatusBadRequest)
		done(http.StatusBadRequest)
		return
	}

	resp, err := h.registry.RegisterClient(ctx, ClientRegistrationRequest{
		Name:         body.ClientName,
		RedirectURIs: body.RedirectURIs,
		Scopes:       body.Scopes,
		Confidential: body.Confidential,
	})
	if err != nil {
		var oauthErr *OAuthError
		if errors.As(err, &oauthErr) {
			h.writeError(w, oauthErr.Code, oauthErr.Description, http.StatusBadRequest)
			done(http.StatusBadRequest)
			return
		}
		h.logger.Error("Client registration failed", "error", err)
		h.writeError(w, ErrorCodeServerError, "an internal error occurred", http.StatusInternalServerError)
		done(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode registration response", "error", err)
	}
	done(http.StatusCreated)
}

// RequireToken wraps a protected-resource handler: a valid bearer token
// with the given scopes must be presented. The validated token is placed
// in the request context for AccessTokenFromContext.
func (h *Handler) RequireToken(next http.Handler, requiredScopes ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := RequestFromHTTP(r)
		if err != nil {
			h.writeError(w, ErrorCodeInvalidRequest, "malformed request", http.StatusBadRequest)
			return
		}

		token, err := h.resource.GetAccessToken(r.Context(), req, requiredScopes...)
		if err != nil {
			var oauthErr *OAuthError
			if errors.As(err, &oauthErr) {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
				return
			}
			h.logger.Error("Token validation failed", "error", err)
			h.writeError(w, ErrorCodeServerError, "an internal error occurred", http.StatusInternalServerError)
			return
		}
		if token == nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeError(w, ErrorCodeInvalidToken, "a bearer token is required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessTokenFromContext returns the token RequireToken validated, nil if
// the request did not pass through the middleware
func AccessTokenFromContext(ctx context.Context) *storage.Token {
	token, _ := ctx.Value(tokenContextKey{}).(*storage.Token)
	return token
}

// begin applies the shared per-request concerns: security headers, rate
// limiting, tracing, and timing. It returns a nil context when the request
// was already rejected. The returned func records the final status.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request, endpoint string) (context.Context, func(int)) {
	security.SetSecurityHeaders(w, h.serverURL)

	if h.rateLimiter != nil {
		ip := security.GetClientIP(r, h.trustProxy)
		if !h.rateLimiter.Allow(ip) {
			h.logger.Warn("Rate limit exceeded", "endpoint", endpoint, "ip", ip)
			if h.inst != nil {
				h.inst.Metrics().RecordRateLimitExceeded(r.Context(), endpoint)
			}
			h.writeError(w, ErrorCodeInvalidRequest, "rate limit exceeded", http.StatusTooManyRequests)
			return nil, nil
		}
	}

	ctx := r.Context()
	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth."+endpoint,
			trace.WithAttributes(attribute.String(instrumentation.AttrEndpoint, endpoint)))
	}

	start := time.Now()
	return ctx, func(status int) {
		if span != nil {
			span.SetAttributes(attribute.Int("http.status_code", status))
			span.End()
		}
		if h.inst != nil {
			h.inst.Metrics().RecordHTTPRequest(ctx, endpoint, r.Method, status, float64(time.Since(start).Milliseconds()))
		}
	}
}

// writeResponse renders a core response onto the wire
func (h *Handler) writeResponse(w http.ResponseWriter, resp *Response) {
	if err := resp.Write(w); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// writeError writes an OAuth error JSON body
func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: code, ErrorDescription: description}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
