package security

import (
	"encoding/hex"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if len(token) != TokenLength {
		t.Errorf("token length = %d, want %d", len(token), TokenLength)
	}

	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("token %q is not valid hex: %v", token, err)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestGenerateClientSecret(t *testing.T) {
	secret, err := GenerateClientSecret()
	if err != nil {
		t.Fatalf("GenerateClientSecret() error = %v", err)
	}
	if len(secret) != SecretLength {
		t.Errorf("secret length = %d, want %d", len(secret), SecretLength)
	}
}

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"equal", "abc123", "abc123", true},
		{"different", "abc123", "abc124", false},
		{"case differs", "ABC123", "abc123", false},
		{"different length", "abc", "abc123", false},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecureCompare(tt.a, tt.b); got != tt.want {
				t.Errorf("SecureCompare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
