package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-server/instrumentation"
	"github.com/giantswarm/oauth2-server/security"
	"github.com/giantswarm/oauth2-server/storage"
)

// genericInvalidClient is the single message used for every client
// authentication failure. Distinguishing "unknown client" from "wrong
// secret" would hand attackers an enumeration oracle.
const genericInvalidClient = "client authentication failed"

// AuthorizationServer orchestrates grant dispatch, client authentication,
// and the authorize/token/revoke endpoints. Grants are registered once at
// construction; the dispatch maps are never mutated afterwards.
type AuthorizationServer struct {
	grants        map[string]Grant
	responseTypes map[string]Grant

	clients       storage.ClientStore
	accessTokens  *TokenService
	refreshTokens *TokenService

	options Options
	logger  *slog.Logger
	auditor *security.Auditor
	inst    *instrumentation.Instrumentation
}

var _ GrantRegistry = (*AuthorizationServer)(nil)

// NewAuthorizationServer creates a server from an ordered list of grants.
// Grants implementing ServerAware receive a read-only registry view so
// they can ask whether a sibling grant is registered.
func NewAuthorizationServer(clients storage.ClientStore, accessTokens, refreshTokens *TokenService, options Options, grants ...Grant) (*AuthorizationServer, error) {
	if len(grants) == 0 {
		return nil, fmt.Errorf("at least one grant is required")
	}

	s := &AuthorizationServer{
		grants:        make(map[string]Grant, len(grants)),
		responseTypes: make(map[string]Grant),
		clients:       clients,
		accessTokens:  accessTokens,
		refreshTokens: refreshTokens,
		options:       options.WithDefaults(),
		logger:        slog.Default(),
	}

	for _, grant := range grants {
		if _, dup := s.grants[grant.Type()]; dup {
			return nil, fmt.Errorf("grant type %q registered twice", grant.Type())
		}
		s.grants[grant.Type()] = grant
		if rt := grant.ResponseType(); rt != "" {
			if _, dup := s.responseTypes[rt]; dup {
				return nil, fmt.Errorf("response type %q registered twice", rt)
			}
			s.responseTypes[rt] = grant
		}
		if aware, ok := grant.(ServerAware); ok {
			aware.BindRegistry(s)
		}
	}

	return s, nil
}

// SetLogger sets a custom logger
func (s *AuthorizationServer) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetAuditor sets the security audit logger
func (s *AuthorizationServer) SetAuditor(auditor *security.Auditor) {
	s.auditor = auditor
}

// SetInstrumentation sets OpenTelemetry instrumentation
func (s *AuthorizationServer) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.inst = inst
}

// Options returns the effective server options after defaulting
func (s *AuthorizationServer) Options() Options {
	return s.options
}

// HasGrant reports whether a grant type is registered
func (s *AuthorizationServer) HasGrant(grantType string) bool {
	_, ok := s.grants[grantType]
	return ok
}

// Grant returns the registered grant for a grant type
func (s *AuthorizationServer) Grant(grantType string) (Grant, error) {
	grant, ok := s.grants[grantType]
	if !ok {
		return nil, ErrUnsupportedGrantType(fmt.Sprintf("grant type %q is not supported", grantType))
	}
	return grant, nil
}

// HasResponseType reports whether a response type is registered
func (s *AuthorizationServer) HasResponseType(responseType string) bool {
	_, ok := s.responseTypes[responseType]
	return ok
}

// ResponseTypeGrant returns the registered grant for a response type
func (s *AuthorizationServer) ResponseTypeGrant(responseType string) (Grant, error) {
	grant, ok := s.responseTypes[responseType]
	if !ok {
		return nil, ErrUnsupportedResponseType(fmt.Sprintf("response type %q is not supported", responseType))
	}
	return grant, nil
}

// HandleAuthorizationRequest serves the authorize endpoint. OAuth errors
// raised anywhere below are caught here, once, and rendered as a 400 JSON
// body; the result always carries Content-Type: application/json unless it
// is a redirect.
func (s *AuthorizationServer) HandleAuthorizationRequest(ctx context.Context, req *Request, ownerID string) *Response {
	resp, err := s.authorizationResponse(ctx, req, ownerID)
	if err != nil {
		return s.errorResponse(ctx, err, "authorize")
	}
	return resp
}

func (s *AuthorizationServer) authorizationResponse(ctx context.Context, req *Request, ownerID string) (*Response, error) {
	responseType := req.QueryParam("response_type")
	if responseType == "" {
		return nil, ErrInvalidRequest("response_type is required")
	}

	grant, err := s.ResponseTypeGrant(responseType)
	if err != nil {
		return nil, err
	}

	client, err := s.authenticateClient(ctx, req, grant.AllowsPublicClients())
	if err != nil {
		return nil, err
	}
	if client == nil {
		// The authorize endpoint identifies the client by the client_id
		// query parameter; authentication happens at the token endpoint.
		client, err = s.identifyClient(ctx, req.QueryParam("client_id"))
		if err != nil {
			return nil, err
		}
	}

	return grant.AuthorizationResponse(ctx, req, client, ownerID)
}

// HandleTokenRequest serves the token endpoint. Successful responses carry
// Cache-Control: no-store and Pragma: no-cache; failures follow the same
// single-catch-point JSON convention as the authorize endpoint.
func (s *AuthorizationServer) HandleTokenRequest(ctx context.Context, req *Request, ownerID string) *Response {
	resp, err := s.tokenResponse(ctx, req, ownerID)
	if err != nil {
		return s.errorResponse(ctx, err, "token")
	}
	resp.SetHeader("Cache-Control", "no-store")
	resp.SetHeader("Pragma", "no-cache")
	return resp
}

func (s *AuthorizationServer) tokenResponse(ctx context.Context, req *Request, ownerID string) (*Response, error) {
	grantType := req.BodyParam("grant_type")
	if grantType == "" {
		return nil, ErrInvalidRequest("grant_type is required")
	}

	grant, err := s.Grant(grantType)
	if err != nil {
		return nil, err
	}
	if s.inst != nil {
		s.inst.Metrics().RecordGrantRequest(ctx, grantType)
	}

	client, err := s.authenticateClient(ctx, req, grant.AllowsPublicClients())
	if err != nil {
		return nil, err
	}
	instrumentation.AddGrantAttributes(trace.SpanFromContext(ctx), grantType, clientID(client))

	resp, err := grant.TokenResponse(ctx, req, client, ownerID)
	if err != nil {
		if s.inst != nil {
			var oauthErr *OAuthError
			if errors.As(err, &oauthErr) {
				s.inst.Metrics().RecordGrantFailure(ctx, grantType, oauthErr.Code)
			}
		}
		return nil, err
	}

	if body, ok := resp.Body().(TokenResponse); ok {
		s.auditor.LogTokenIssued(body.OwnerID, clientID(client), grantType, body.Scope)
		if s.inst != nil {
			s.inst.Metrics().RecordTokenIssued(ctx, string(storage.KindAccessToken), grantType)
		}
	}
	return resp, nil
}

// HandleRevocationRequest serves the revoke endpoint. Two deliberate
// departures from the authorize/token error convention apply here:
// OAuth-family errors are returned to the caller uncaught, and a failure
// during the deletion step becomes a 503 with a plain description. An
// unknown token is success (200): existence is never disclosed.
func (s *AuthorizationServer) HandleRevocationRequest(ctx context.Context, req *Request) (*Response, error) {
	tokenString := req.BodyParam("token")
	if tokenString == "" {
		return nil, ErrInvalidRequest("token is required")
	}

	var service *TokenService
	switch req.BodyParam("token_type_hint") {
	case "access_token":
		service = s.accessTokens
	case "refresh_token":
		service = s.refreshTokens
	case "":
		return nil, ErrInvalidRequest("token_type_hint is required")
	default:
		return nil, ErrUnsupportedTokenType("token_type_hint must be access_token or refresh_token")
	}

	token, err := service.GetToken(ctx, tokenString)
	if err != nil {
		return s.revocationFailure(err), nil
	}
	if token == nil {
		return NewResponse(), nil
	}

	if token.ClientID != "" {
		owningClient, err := s.clients.GetClient(ctx, token.ClientID)
		if err != nil && !errors.Is(err, storage.ErrClientNotFound) {
			return s.revocationFailure(err), nil
		}
		if owningClient != nil && owningClient.Confidential() {
			requester, err := s.authenticateClient(ctx, req, false)
			if err != nil {
				return nil, err
			}
			if requester == nil || requester.ID != token.ClientID {
				return nil, ErrInvalidClient(genericInvalidClient)
			}
		}
	}

	if err := service.DeleteToken(ctx, token); err != nil {
		return s.revocationFailure(err), nil
	}

	return NewResponse(), nil
}

// revocationFailure renders a deletion-step failure as 503 with a plain
// description and no error field
func (s *AuthorizationServer) revocationFailure(err error) *Response {
	s.logger.Error("Token revocation failed", "error", err)

	resp := NewResponse()
	resp.SetStatus(http.StatusServiceUnavailable)
	resp.SetJSON(map[string]string{
		"error_description": "token revocation is temporarily unavailable",
	})
	return resp
}

// identifyClient resolves a client by id without verifying a secret. An
// empty id resolves to nil.
func (s *AuthorizationServer) identifyClient(ctx context.Context, id string) (*storage.Client, error) {
	if id == "" {
		return nil, nil
	}
	client, err := s.clients.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return nil, ErrInvalidRequest("unknown client_id")
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}
	return client, nil
}

// authenticateClient extracts and verifies the requesting client. An
// Authorization: Basic header is preferred; client_id/client_secret body
// fields are the fallback. Public-client leniency is determined by the
// grant: when public clients are allowed and no credentials were supplied
// at all, the flow proceeds with a nil client.
func (s *AuthorizationServer) authenticateClient(ctx context.Context, req *Request, allowPublicClients bool) (*storage.Client, error) {
	id, secret := s.extractClientCredentials(req)

	if secret == "" && !allowPublicClients {
		s.auditor.LogClientAuthFailure(id, "missing client secret for confidential-only grant")
		return nil, ErrInvalidClient(genericInvalidClient)
	}

	if id == "" && allowPublicClients {
		// Fully anonymous public flow
		return nil, nil
	}

	client, err := s.clients.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			// Burn comparable time so an unknown id is indistinguishable
			// from a wrong secret.
			_ = bcrypt.CompareHashAndPassword([]byte(dummySecretHash), []byte(secret))
			s.auditor.LogClientAuthFailure(id, "unknown client")
			return nil, ErrInvalidClient(genericInvalidClient)
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	if client.Confidential() {
		if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
			s.auditor.LogClientAuthFailure(id, "secret verification failed")
			return nil, ErrInvalidClient(genericInvalidClient)
		}
	} else if !allowPublicClients {
		s.auditor.LogClientAuthFailure(id, "public client on confidential-only grant")
		return nil, ErrInvalidClient(genericInvalidClient)
	}

	return client, nil
}

// dummySecretHash is a bcrypt hash of a random throwaway value, compared
// against when the client id is unknown to equalize timing.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// extractClientCredentials reads credentials from the Basic header first,
// then from the body
func (s *AuthorizationServer) extractClientCredentials(req *Request) (id, secret string) {
	if auth := req.HeaderLine("Authorization"); strings.HasPrefix(auth, "Basic ") {
		if decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic ")); err == nil {
			if pair := strings.SplitN(string(decoded), ":", 2); len(pair) == 2 {
				return pair[0], pair[1]
			}
		}
	}
	return req.BodyParam("client_id"), req.BodyParam("client_secret")
}

// errorResponse is the single catch point for OAuth errors raised during
// authorize/token handling. Anything that is not an OAuthError is masked
// as server_error.
func (s *AuthorizationServer) errorResponse(ctx context.Context, err error, endpoint string) *Response {
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		s.logger.Error("Internal error while handling request", "endpoint", endpoint, "error", err)
		oauthErr = ErrServerError("an internal error occurred")
	} else {
		s.logger.Debug("Request rejected", "endpoint", endpoint, "error", oauthErr.Code, "description", oauthErr.Description)
	}

	resp := NewResponse()
	resp.SetStatus(http.StatusBadRequest)
	resp.SetJSON(ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
	return resp
}

// clientID returns the client's id, empty for a nil client
func clientID(client *storage.Client) string {
	if client == nil {
		return ""
	}
	return client.ID
}
