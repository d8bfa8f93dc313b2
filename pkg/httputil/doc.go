// Package httputil provides HTTP plumbing shared by the remote API clients.
//
// # Overview
//
//   - [Retry]: retry with exponential backoff for errors marked [Retryable]
//   - [Limiter]: a shared ceiling on concurrent requests to one host
//   - [NewHTTPClient]: a client with a per-request timeout and a
//     compression-aware transport
//
// # Retry
//
// [Retry] only retries errors wrapped with [RetryableError]; everything else
// returns on the first failure. Callers decide what is transient: the API
// client marks network failures, and the manifest fetcher marks 404s on
// blob lookups, which a freshly pushed commit can briefly return.
//
//	err := httputil.Retry(ctx, 3, 200*time.Millisecond, func() error {
//	    return fetch()
//	})
//
// # Limits
//
// One [Limiter] is shared by every request to a host, so worker pools of any
// size never exceed the configured number of in-flight requests:
//
//	if err := limiter.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer limiter.Release()
package httputil
