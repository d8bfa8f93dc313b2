// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about resolution passes, cache operations, and API calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, which avoids import cycles
// and keeps the resolution engine free of metrics frameworks.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetCatalogHooks(&myCatalogHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Catalog().OnPassStart(ctx, passID)
//	// ... walk projects ...
//	observability.Catalog().OnPassComplete(ctx, passID, versions, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Catalog Hooks
// =============================================================================

// CatalogHooks receives events from a catalog resolution pass.
type CatalogHooks interface {
	OnPassStart(ctx context.Context, passID string)
	// OnProjectComplete fires once per project. state is "done" or "skipped";
	// err carries the skip reason.
	OnProjectComplete(ctx context.Context, project, state string, versions int, err error)
	OnPassComplete(ctx context.Context, passID string, versions int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)

	// OnCacheError records a backend failure that was degraded to a miss
	// or a dropped write.
	OnCacheError(ctx context.Context, keyType string, err error)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCatalogHooks is a no-op implementation of CatalogHooks.
type NoopCatalogHooks struct{}

func (NoopCatalogHooks) OnPassStart(context.Context, string)                                 {}
func (NoopCatalogHooks) OnProjectComplete(context.Context, string, string, int, error)      {}
func (NoopCatalogHooks) OnPassComplete(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)          {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)         {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int)     {}
func (NoopCacheHooks) OnCacheError(context.Context, string, error) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	catalogHooks CatalogHooks = NoopCatalogHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetCatalogHooks registers custom catalog hooks.
// This should be called once at application startup before any resolution pass.
func SetCatalogHooks(h CatalogHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		catalogHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Catalog returns the registered catalog hooks.
func Catalog() CatalogHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return catalogHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	catalogHooks = NoopCatalogHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}

// =============================================================================
// Counters
// =============================================================================

// Counts is a point-in-time copy of a [Counters] tally.
type Counts struct {
	ProjectsDone    int
	ProjectsSkipped int
	Versions        int
	CacheHits       int
	CacheMisses     int
	CacheErrors     int
	Requests        int
	HTTPErrors      int
}

// Counters is a thread-safe CatalogHooks, CacheHooks and HTTPHooks
// implementation that tallies events. The CLI registers one to print a pass
// summary.
type Counters struct {
	mu sync.Mutex
	n  Counts
}

func (c *Counters) OnPassStart(context.Context, string) {}

func (c *Counters) OnProjectComplete(_ context.Context, _ string, state string, versions int, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state == "skipped" {
		c.n.ProjectsSkipped++
		return
	}
	c.n.ProjectsDone++
	c.n.Versions += versions
}

func (c *Counters) OnPassComplete(context.Context, string, int, time.Duration, error) {}

func (c *Counters) OnCacheHit(context.Context, string)      { c.add(&c.n.CacheHits) }
func (c *Counters) OnCacheMiss(context.Context, string)     { c.add(&c.n.CacheMisses) }
func (c *Counters) OnCacheSet(context.Context, string, int) {}

func (c *Counters) OnCacheError(context.Context, string, error) { c.add(&c.n.CacheErrors) }

func (c *Counters) OnRequest(context.Context, string, string, string) { c.add(&c.n.Requests) }

func (c *Counters) OnResponse(context.Context, string, string, string, int, time.Duration) {}

func (c *Counters) OnError(context.Context, string, string, string, error) { c.add(&c.n.HTTPErrors) }

func (c *Counters) add(field *int) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counts.
func (c *Counters) Snapshot() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
