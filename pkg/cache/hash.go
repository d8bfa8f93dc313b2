package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

var commitIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)

// IsCommitID reports whether id looks like a full 40-character commit hash.
// Only content addressed by such ids is safe to cache forever.
func IsCommitID(id string) bool {
	return commitIDPattern.MatchString(id)
}

// Namespace builds the key prefix for a remote host and project path, e.g.
// "gitlab:gitlab.example.com:acme/widget:". Distinct hosts or projects never
// share a prefix.
func Namespace(host, project string) string {
	return "gitlab:" + strings.ToLower(host) + ":" + project + ":"
}
