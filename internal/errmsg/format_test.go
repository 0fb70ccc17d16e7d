//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/thegaspygames/canciones/internal/auth"
	"github.com/thegaspygames/canciones/internal/config"
	"github.com/thegaspygames/canciones/internal/github"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpCatalogLoad,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpCatalogLoad,
			err:      errors.New("connection refused"),
			expected: "Failed to load catalog: connection refused",
		},
		{
			name:     "config error gets a hint",
			op:       OpPublish,
			err:      &config.ConfigError{Key: "github.token", Reason: "is not set"},
			expected: "Failed to publish song: config: github.token is not set (set github.token in canciones.toml)",
		},
		{
			name:     "wrapped unauthorized",
			op:       OpPublish,
			err:      fmt.Errorf("%w: account x is not allowed", auth.ErrUnauthorized),
			expected: "Failed to publish song: not authorized: account x is not allowed (run 'canciones login' with the allowed Discord account)",
		},
		{
			name:     "stale sha",
			op:       OpPublish,
			err:      fmt.Errorf("update index: %w", &github.RemoteError{StatusCode: 409, Message: "sha mismatch"}),
			expected: "Failed to publish song: update index: github: sha mismatch (HTTP 409) (the catalog changed meanwhile, try again)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	err := errors.New("permission denied")

	if got, want := FormatWith(OpReadAsset, "cover.png", err), "Failed to read file 'cover.png': permission denied"; got != want {
		t.Errorf("FormatWith() = %q, want %q", got, want)
	}
	if got, want := FormatWith(OpReadAsset, "", err), Format(OpReadAsset, err); got != want {
		t.Errorf("FormatWith() with empty context = %q, want %q", got, want)
	}
	if got := FormatWith(OpReadAsset, "x", nil); got != "" {
		t.Errorf("FormatWith() with nil error = %q, want empty", got)
	}
}

func TestHint(t *testing.T) {
	if got := Hint(github.ErrNotFound); got == "" {
		t.Error("Hint(ErrNotFound) is empty")
	}
	if got := Hint(&github.RemoteError{StatusCode: 403}); got == "" {
		t.Error("Hint(403) is empty")
	}
	if got := Hint(errors.New("other")); got != "" {
		t.Errorf("Hint(other) = %q, want empty", got)
	}
}
