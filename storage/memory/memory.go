package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-server/instrumentation"
	"github.com/giantswarm/oauth2-server/security"
	"github.com/giantswarm/oauth2-server/storage"
)

// Store is an in-memory implementation of all storage interfaces.
// It implements TokenStore, ClientStore, and ScopeStore.
type Store struct {
	mu sync.RWMutex

	// tokens holds one namespace per token kind
	tokens map[storage.TokenKind]map[string]*storage.Token

	clients map[string]*storage.Client

	// scopes preserves registration order for deterministic listings
	scopes     []*storage.Scope
	scopeNames map[string]bool

	// encryptor protects the stored owner reference at rest (optional)
	encryptor *security.Encryptor

	// Instrumentation
	inst   *instrumentation.Instrumentation
	tracer trace.Tracer

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.TokenStore  = (*Store)(nil)
	_ storage.ClientStore = (*Store)(nil)
	_ storage.ScopeStore  = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval
// (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup
// interval. If cleanupInterval is 0 or negative, the default of 1 minute
// is used.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		tokens: map[storage.TokenKind]map[string]*storage.Token{
			storage.KindAccessToken:       make(map[string]*storage.Token),
			storage.KindRefreshToken:      make(map[string]*storage.Token),
			storage.KindAuthorizationCode: make(map[string]*storage.Token),
		},
		clients:         make(map[string]*storage.Client),
		scopeNames:      make(map[string]bool),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetEncryptor sets the encryptor used to protect owner references at rest
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptor = enc
	if enc.IsEnabled() {
		s.logger.Info("Owner reference encryption at rest enabled for storage")
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inst = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
}

// Stop gracefully stops the cleanup goroutine
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// ============================================================
// TokenStore Implementation
// ============================================================

// FindByToken retrieves a token by its exact string
func (s *Store) FindByToken(ctx context.Context, kind storage.TokenKind, token string) (*storage.Token, error) {
	ctx, span := s.startSpan(ctx, "find_by_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() { s.recordOperation(ctx, span, "find_by_token", err, startTime) }()

	s.mu.RLock()
	stored, ok := s.tokens[kind][token]
	s.mu.RUnlock()

	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}

	result, decErr := s.decryptOwner(stored)
	if decErr != nil {
		err = decErr
		return nil, err
	}
	return result, nil
}

// SaveToken persists a new token, enforcing string uniqueness per kind
func (s *Store) SaveToken(ctx context.Context, token *storage.Token) error {
	ctx, span := s.startSpan(ctx, "save_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() { s.recordOperation(ctx, span, "save_token", err, startTime) }()

	if token == nil {
		err = fmt.Errorf("token cannot be nil")
		return err
	}
	if token.Token == "" {
		err = fmt.Errorf("token string cannot be empty")
		return err
	}

	stored, encErr := s.encryptOwner(token)
	if encErr != nil {
		err = encErr
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kindTokens, ok := s.tokens[token.Kind]
	if !ok {
		err = fmt.Errorf("unknown token kind %q", token.Kind)
		return err
	}
	if _, exists := kindTokens[token.Token]; exists {
		err = storage.ErrTokenExists
		return err
	}

	kindTokens[token.Token] = stored
	return nil
}

// DeleteToken removes a token
func (s *Store) DeleteToken(ctx context.Context, kind storage.TokenKind, token string) error {
	ctx, span := s.startSpan(ctx, "delete_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() { s.recordOperation(ctx, span, "delete_token", err, startTime) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[kind][token]; !ok {
		err = storage.ErrTokenNotFound
		return err
	}
	delete(s.tokens[kind], token)
	return nil
}

// TokenExists reports whether a token string is already taken
func (s *Store) TokenExists(ctx context.Context, kind storage.TokenKind, token string) (bool, error) {
	ctx, span := s.startSpan(ctx, "token_exists")
	defer span.End()

	startTime := time.Now()
	defer func() { s.recordOperation(ctx, span, "token_exists", nil, startTime) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[kind][token]
	return ok, nil
}

// PurgeExpiredTokens removes all expired tokens of the given kind
func (s *Store) PurgeExpiredTokens(ctx context.Context, kind storage.TokenKind) (int, error) {
	ctx, span := s.startSpan(ctx, "purge_expired_tokens")
	defer span.End()

	startTime := time.Now()
	defer func() { s.recordOperation(ctx, span, "purge_expired_tokens", nil, startTime) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for str, token := range s.tokens[kind] {
		if token.Expired() {
			delete(s.tokens[kind], str)
			removed++
		}
	}
	return removed, nil
}

// ============================================================
// ClientStore Implementation
// ============================================================

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() { s.recordOperation(ctx, span, "get_client", err, startTime) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = storage.ErrClientNotFound
		return nil, err
	}
	return client, nil
}

// SaveClient persists a newly registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	ctx, span := s.startSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() { s.recordOperation(ctx, span, "save_client", err, startTime) }()

	if client == nil {
		err = fmt.Errorf("client cannot be nil")
		return err
	}
	if client.ID == "" {
		err = fmt.Errorf("client ID cannot be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		err = storage.ErrClientExists
		return err
	}
	s.clients[client.ID] = client
	return nil
}

// ClientIDExists reports whether a client ID is already registered
func (s *Store) ClientIDExists(ctx context.Context, clientID string) (bool, error) {
	ctx, span := s.startSpan(ctx, "client_id_exists")
	defer span.End()

	startTime := time.Now()
	defer func() { s.recordOperation(ctx, span, "client_id_exists", nil, startTime) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[clientID]
	return ok, nil
}

// ============================================================
// ScopeStore Implementation
// ============================================================

// SaveScope registers a scope
func (s *Store) SaveScope(ctx context.Context, scope *storage.Scope) error {
	ctx, span := s.startSpan(ctx, "save_scope")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() { s.recordOperation(ctx, span, "save_scope", err, startTime) }()

	if scope == nil {
		err = fmt.Errorf("scope cannot be nil")
		return err
	}
	if scope.Name == "" {
		err = fmt.Errorf("scope name cannot be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scopeNames[scope.Name] {
		err = storage.ErrScopeExists
		return err
	}
	s.scopes = append(s.scopes, scope)
	s.scopeNames[scope.Name] = true
	return nil
}

// FindAllScopes returns every registered scope
func (s *Store) FindAllScopes(ctx context.Context) ([]*storage.Scope, error) {
	ctx, span := s.startSpan(ctx, "find_all_scopes")
	defer span.End()

	startTime := time.Now()
	defer func() { s.recordOperation(ctx, span, "find_all_scopes", nil, startTime) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Scope, len(s.scopes))
	copy(result, s.scopes)
	return result, nil
}

// FindDefaultScopes returns the scopes marked as defaults
func (s *Store) FindDefaultScopes(ctx context.Context) ([]*storage.Scope, error) {
	ctx, span := s.startSpan(ctx, "find_default_scopes")
	defer span.End()

	startTime := time.Now()
	defer func() { s.recordOperation(ctx, span, "find_default_scopes", nil, startTime) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Scope
	for _, scope := range s.scopes {
		if scope.IsDefault {
			result = append(result, scope)
		}
	}
	return result, nil
}

// ============================================================
// Encryption at rest
// ============================================================

func (s *Store) encryptOwner(token *storage.Token) (*storage.Token, error) {
	s.mu.RLock()
	enc := s.encryptor
	s.mu.RUnlock()

	if !enc.IsEnabled() || token.OwnerID == "" {
		return token, nil
	}

	encrypted, err := enc.Encrypt(token.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt owner reference: %w", err)
	}

	clone := *token
	clone.OwnerID = encrypted
	return &clone, nil
}

func (s *Store) decryptOwner(token *storage.Token) (*storage.Token, error) {
	s.mu.RLock()
	enc := s.encryptor
	s.mu.RUnlock()

	if !enc.IsEnabled() || token.OwnerID == "" {
		return token, nil
	}

	decrypted, err := enc.Decrypt(token.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt owner reference: %w", err)
	}

	clone := *token
	clone.OwnerID = decrypted
	return &clone, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup purges expired tokens of every kind
func (s *Store) cleanup() {
	ctx := context.Background()
	total := 0
	for _, kind := range []storage.TokenKind{
		storage.KindAccessToken,
		storage.KindRefreshToken,
		storage.KindAuthorizationCode,
	} {
		removed, err := s.PurgeExpiredTokens(ctx, kind)
		if err != nil {
			s.logger.Warn("Failed to purge expired tokens", "kind", kind, "error", err)
			continue
		}
		total += removed
	}

	if total > 0 {
		s.logger.Debug("Purged expired tokens", "count", total)
	}
}

// ============================================================
// Instrumentation helpers
// ============================================================

func (s *Store) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	s.mu.RLock()
	tracer := s.tracer
	s.mu.RUnlock()

	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(attribute.String("operation", operation)))
}

func (s *Store) recordOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if err != nil {
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanError(span, err.Error())
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	s.mu.RLock()
	inst := s.inst
	s.mu.RUnlock()
	if inst == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	inst.Metrics().RecordStorageOperation(ctx, operation, result, float64(time.Since(startTime).Milliseconds()))
}
