package cache

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitlab-composer/pkg/observability"
)

// Scope is a namespaced view over a [Cache] for one remote project.
//
// Keys passed to Read and Write are relative to the scope, so two projects
// (or the same project path on two hosts) never collide. Backend failures
// are logged at debug level and reported through the cache hooks, then
// degraded: a failed read is a miss and a failed write is dropped.
type Scope struct {
	cache  Cache
	prefix string
	logger *log.Logger
}

// NewScope returns a scope for project on host. A nil cache disables
// caching; a nil logger uses log.Default().
func NewScope(c Cache, host, project string, logger *log.Logger) *Scope {
	if c == nil {
		c = NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scope{cache: c, prefix: Namespace(host, project), logger: logger}
}

// Prefix returns the namespace prepended to every key.
func (s *Scope) Prefix() string { return s.prefix }

// Read returns the body stored under key, or false when absent.
func (s *Scope) Read(ctx context.Context, key string) ([]byte, bool) {
	kind := keyKind(key)
	data, ok, err := s.cache.Get(ctx, s.prefix+key)
	if err != nil {
		s.logger.Debug("cache read failed", "key", s.prefix+key, "err", err)
		observability.Cache().OnCacheError(ctx, kind, err)
		return nil, false
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, kind)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, kind)
	return data, true
}

// Write stores body under key with no expiry. Entries are write-once by
// convention: the key identifies immutable content, so rewriting the same
// key stores the same bytes.
func (s *Scope) Write(ctx context.Context, key string, body []byte) {
	kind := keyKind(key)
	if err := s.cache.Set(ctx, s.prefix+key, body, TTLForever); err != nil {
		s.logger.Debug("cache write dropped", "key", s.prefix+key, "err", err)
		observability.Cache().OnCacheError(ctx, kind, err)
		return
	}
	observability.Cache().OnCacheSet(ctx, kind, len(body))
}

// keyKind is the first key segment ("manifest" for "manifest:<sha>"), used
// as the hook key type.
func keyKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
