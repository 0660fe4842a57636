package oauth

import (
	"net/http"
	"testing"
)

func TestOAuthErrorError(t *testing.T) {
	err := NewOAuthError(ErrorCodeInvalidGrant, "code expired", http.StatusBadRequest)
	if got := err.Error(); got != "invalid_grant: code expired" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		construct  func(string) *OAuthError
		wantCode   string
		wantStatus int
	}{
		{"invalid_request", ErrInvalidRequest, ErrorCodeInvalidRequest, http.StatusBadRequest},
		{"invalid_client", ErrInvalidClient, ErrorCodeInvalidClient, http.StatusUnauthorized},
		{"invalid_grant", ErrInvalidGrant, ErrorCodeInvalidGrant, http.StatusBadRequest},
		{"unauthorized_client", ErrUnauthorizedClient, ErrorCodeUnauthorizedClient, http.StatusBadRequest},
		{"unsupported_grant_type", ErrUnsupportedGrantType, ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{"invalid_scope", ErrInvalidScope, ErrorCodeInvalidScope, http.StatusBadRequest},
		{"access_denied", ErrAccessDenied, ErrorCodeAccessDenied, http.StatusBadRequest},
		{"unsupported_response_type", ErrUnsupportedResponseType, ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
		{"unsupported_token_type", ErrUnsupportedTokenType, ErrorCodeUnsupportedTokenType, http.StatusBadRequest},
		{"invalid_token", ErrInvalidToken, ErrorCodeInvalidToken, http.StatusUnauthorized},
		{"server_error", ErrServerError, ErrorCodeServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.construct("details")
			if err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.wantCode)
			}
			if err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", err.Status, tt.wantStatus)
			}
			if err.Description != "details" {
				t.Errorf("Description = %q", err.Description)
			}
		})
	}
}
