package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidatePath validates a file path within a repository for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateBaseURL validates the GitLab base URL supplied by configuration.
// The URL must be absolute with an http or https scheme and a host.
// Failures carry ErrCodeConfiguration because they are fatal at startup.
func ValidateBaseURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return New(ErrCodeConfiguration, "base URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeConfiguration, err, "invalid base URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeConfiguration, "base URL must use http or https scheme: %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeConfiguration, "base URL has no host: %q", rawURL)
	}
	return nil
}

// projectPathRegex matches GitLab "namespace/name" project paths. Nested
// groups ("group/subgroup/name") are accepted.
var projectPathRegex = regexp.MustCompile(`^[\w.-]+(/[\w.-]+)+$`)

// ValidateProjectPath validates a GitLab project path such as "acme/widget".
func ValidateProjectPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "project path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidInput, "project path cannot contain path traversal sequences (..)")
	}
	if !projectPathRegex.MatchString(path) {
		return New(ErrCodeInvalidInput, "invalid project path: %q", path)
	}
	return nil
}
