package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-server/security"
	"github.com/giantswarm/oauth2-server/storage"
)

// ClientRegistry registers new clients. The server generates the id and,
// for confidential clients, the raw secret; only the bcrypt hash is
// persisted, and the raw secret is returned exactly once.
type ClientRegistry struct {
	clients storage.ClientStore
	scopes  storage.ScopeStore
	logger  *slog.Logger
	auditor *security.Auditor
}

// NewClientRegistry creates a client registry
func NewClientRegistry(clients storage.ClientStore, scopes storage.ScopeStore) *ClientRegistry {
	return &ClientRegistry{
		clients: clients,
		scopes:  scopes,
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger
func (r *ClientRegistry) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// SetAuditor sets the security audit logger
func (r *ClientRegistry) SetAuditor(auditor *security.Auditor) {
	r.auditor = auditor
}

// ClientRegistrationRequest describes a client to register
type ClientRegistrationRequest struct {
	// Name is the client's display name
	Name string

	// RedirectURIs are the exact redirect URIs allowed for the
	// authorization-code flow
	RedirectURIs []string

	// Scopes are the scope names the client may request. Every name must
	// exist in the registry.
	Scopes []string

	// Confidential requests a client secret. Public clients get none and
	// can never authenticate as confidential.
	Confidential bool
}

// RegisterClient creates and persists a new client. The returned response
// is the only place the raw secret ever appears.
func (r *ClientRegistry) RegisterClient(ctx context.Context, req ClientRegistrationRequest) (*ClientRegistrationResponse, error) {
	for _, raw := range req.RedirectURIs {
		if err := validateRedirectURI(raw); err != nil {
			return nil, ErrInvalidRequest(fmt.Sprintf("redirect URI %q is invalid: %v", raw, err))
		}
	}

	if err := r.validateScopes(ctx, req.Scopes); err != nil {
		return nil, err
	}

	client := &storage.Client{
		ID:           uuid.NewString(),
		Name:         req.Name,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
		CreatedAt:    time.Now(),
	}

	var rawSecret string
	if req.Confidential {
		secret, err := security.GenerateClientSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate client secret: %w", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash client secret: %w", err)
		}
		rawSecret = secret
		client.SecretHash = string(hash)
	}

	if err := r.clients.SaveClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to save client: %w", err)
	}

	r.auditor.LogClientRegistered(client.ID, req.Confidential)
	r.logger.Info("Registered client", "client_id", client.ID, "confidential", req.Confidential)

	return &ClientRegistrationResponse{
		ClientID:     client.ID,
		ClientSecret: rawSecret,
		ClientName:   client.Name,
		RedirectURIs: client.RedirectURIs,
		Scope:        JoinScope(client.Scopes),
	}, nil
}

// validateScopes checks every requested scope name against the registry
func (r *ClientRegistry) validateScopes(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	registered, err := r.scopes.FindAllScopes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scope registry: %w", err)
	}
	registry := make(map[string]bool, len(registered))
	for _, scope := range registered {
		registry[scope.Name] = true
	}

	for _, name := range names {
		if !registry[name] {
			return ErrInvalidScope(fmt.Sprintf("scope %q is not registered", name))
		}
	}
	return nil
}

// validateRedirectURI requires an absolute http(s) URI without a fragment
func validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	if u.Fragment != "" {
		return fmt.Errorf("fragment is not allowed")
	}
	return nil
}
