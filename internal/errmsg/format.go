// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/thegaspygames/canciones/internal/auth"
	"github.com/thegaspygames/canciones/internal/config"
	"github.com/thegaspygames/canciones/internal/github"
)

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Catalog operations
	OpCatalogLoad Op = "load catalog"
	OpCatalogScan Op = "scan music folder"

	// Publish operations
	OpPublish     Op = "publish song"
	OpReadAsset   Op = "read file"
	OpManifestPut Op = "update songs manifest"

	// Session operations
	OpLogin   Op = "log in"
	OpLogout  Op = "log out"
	OpRestore Op = "restore session"

	// Mirror operations
	OpDownload Op = "download catalog"

	// Initialization
	OpConfigLoad Op = "load configuration"
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("Failed to %s: %v", op, err)
	if hint := Hint(err); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	msg := fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
	if hint := Hint(err); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

// Hint suggests what the user can do about err, or returns "".
func Hint(err error) string {
	var ce *config.ConfigError
	var re *github.RemoteError
	switch {
	case errors.As(err, &ce):
		return "set " + ce.Key + " in canciones.toml"
	case errors.Is(err, auth.ErrUnauthorized):
		return "run 'canciones login' with the allowed Discord account"
	case errors.Is(err, auth.ErrAuth):
		return "log in again"
	case github.IsConflict(err):
		return "the catalog changed meanwhile, try again"
	case errors.As(err, &re) && (re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden):
		return "check that the GitHub token can write to the repository"
	case errors.Is(err, github.ErrNotFound):
		return "check the repository owner, name and branch"
	}
	return ""
}
