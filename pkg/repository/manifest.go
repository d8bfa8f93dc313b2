package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/gitlab-composer/pkg/cache"
	"github.com/matzehuels/gitlab-composer/pkg/composer"
	"github.com/matzehuels/gitlab-composer/pkg/httputil"
	"github.com/matzehuels/gitlab-composer/pkg/integrations"
)

// Manifest fetch retry defaults: a 404 is retried twice more before the
// manifest is treated as absent.
const (
	DefaultManifestAttempts   = 3
	DefaultManifestRetryDelay = 500 * time.Millisecond
)

// FetcherOptions configures a [ManifestFetcher].
type FetcherOptions struct {
	Cache      cache.Cache // nil disables caching
	Logger     *log.Logger
	Attempts   int           // tries per manifest; a 404 is retried until exhausted
	RetryDelay time.Duration // initial backoff; zero retries immediately
}

// ManifestFetcher retrieves composer.json at a commit.
//
// Content addressed by a full commit id is read through and written through
// the cache. Every outcome, including absence, is memoized for the
// fetcher's lifetime; use one fetcher per pass.
//
// ManifestFetcher is safe for concurrent use.
type ManifestFetcher struct {
	api        API
	cache      cache.Cache
	logger     *log.Logger
	attempts   int
	retryDelay time.Duration

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]ManifestRecord
}

// NewManifestFetcher creates a fetcher over api.
func NewManifestFetcher(api API, opts FetcherOptions) *ManifestFetcher {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultManifestAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	return &ManifestFetcher{
		api:        api,
		cache:      opts.Cache,
		logger:     opts.Logger,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
		memo:       make(map[string]ManifestRecord),
	}
}

// Fetch returns the manifest of p at commitID. It never fails: any error
// yields an absent record and a debug log entry. A record fetched under a
// cancelled ctx is not memoized.
func (f *ManifestFetcher) Fetch(ctx context.Context, p Project, commitID string) ManifestRecord {
	key := strconv.Itoa(p.ID) + ":" + commitID

	f.mu.Lock()
	rec, ok := f.memo[key]
	f.mu.Unlock()
	if ok {
		return rec
	}

	v, _, _ := f.group.Do(key, func() (any, error) {
		rec := f.fetch(ctx, p, commitID)
		if ctx.Err() != nil {
			return rec, nil
		}
		f.mu.Lock()
		f.memo[key] = rec
		f.mu.Unlock()
		return rec, nil
	})
	return v.(ManifestRecord)
}

func (f *ManifestFetcher) fetch(ctx context.Context, p Project, commitID string) ManifestRecord {
	absent := ManifestRecord{FetchedFrom: commitID}

	cacheable := cache.IsCommitID(commitID)
	scope := cache.NewScope(f.cache, f.api.Host(), p.PathWithNamespace, f.logger)
	cacheKey := "manifest:" + commitID

	if cacheable {
		if body, ok := scope.Read(ctx, cacheKey); ok {
			if m, err := composer.ParseManifest(body); err == nil {
				return ManifestRecord{Content: body, FetchedFrom: commitID, Manifest: m}
			}
			f.logger.Debug("ignoring unreadable cached manifest", "project", p.PathWithNamespace, "commit", commitID)
		}
	}

	var body []byte
	err := httputil.Retry(ctx, f.attempts, f.retryDelay, func() error {
		var err error
		body, err = f.api.GetBlob(ctx, p.ID, commitID, composer.ManifestFile)
		if errors.Is(err, integrations.ErrNotFound) {
			return httputil.Retryable(err)
		}
		return err
	})
	if err != nil {
		var re *httputil.RetryableError
		if errors.As(err, &re) {
			err = re.Err
		}
		f.logger.Debug("manifest absent", "project", p.PathWithNamespace, "commit", commitID, "err", err)
		return absent
	}

	m, err := composer.ParseManifest(body)
	if err != nil {
		f.logger.Debug("manifest absent", "project", p.PathWithNamespace, "commit", commitID, "err", err)
		return absent
	}

	if cacheable {
		scope.Write(ctx, cacheKey, body)
	}
	return ManifestRecord{Content: body, FetchedFrom: commitID, Manifest: m}
}
