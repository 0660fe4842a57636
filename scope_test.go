package oauth

import (
	"reflect"
	"testing"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "read", []string{"read"}},
		{"multiple", "read write", []string{"read", "write"}},
		{"extra whitespace", "  read   write  ", []string{"read", "write"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseScope(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseScope(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestJoinScope(t *testing.T) {
	if got := JoinScope([]string{"read", "write"}); got != "read write" {
		t.Errorf("JoinScope = %q, want %q", got, "read write")
	}
	if got := JoinScope(nil); got != "" {
		t.Errorf("JoinScope(nil) = %q, want empty", got)
	}
}

func TestScopeSubset(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		granted   []string
		want      bool
	}{
		{"empty requested", nil, []string{"read"}, true},
		{"equal sets", []string{"read"}, []string{"read"}, true},
		{"strict subset", []string{"read"}, []string{"read", "write"}, true},
		{"superset", []string{"read", "write"}, []string{"read"}, false},
		{"disjoint", []string{"admin"}, []string{"read"}, false},
		{"case sensitive", []string{"READ"}, []string{"read"}, false},
		{"prefix is not containment", []string{"read"}, []string{"readonly"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scopeSubset(tt.requested, tt.granted); got != tt.want {
				t.Errorf("scopeSubset(%v, %v) = %v, want %v", tt.requested, tt.granted, got, tt.want)
			}
		})
	}
}
