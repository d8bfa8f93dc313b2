package integrations

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds each remote API call unless configured otherwise.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotFound is wrapped by the TransportError for a 404 response.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is wrapped by the TransportError for connection failures and
	// timeouts, where no HTTP status was received.
	ErrNetwork = errors.New("network error")
)

// NormalizeRepoURL converts a repository URL to canonical form: trimmed, no
// "git+" prefix, no trailing slash or ".git" suffix.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, ".git")
}

// URLEncode percent-encodes a string for use in URL path segments, so that
// a project path like "acme/widget" becomes "acme%2Fwidget".
func URLEncode(s string) string { return url.PathEscape(s) }
