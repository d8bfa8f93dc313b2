// Package integrations provides the shared HTTP client for remote API clients.
//
// # Overview
//
// [Client] is embedded by the per-service clients (see [gitlab]). It owns:
//   - default request headers such as the auth token
//   - a per-request timeout
//   - a shared concurrency ceiling ([httputil.Limiter])
//   - retry of network-level failures ([httputil.Retry])
//   - mapping of every failure onto [errs.TransportError]
//
// # Errors
//
// Non-2xx responses become a TransportError carrying the status code and
// are not retried here; callers decide the scope of the failure. A 404
// additionally matches [ErrNotFound] via errors.Is. Connection failures and
// timeouts carry status 0 and wrap [ErrNetwork]. A body that is not valid
// JSON is a TransportError with status 0.
//
// [gitlab]: github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab
// [errs.TransportError]: github.com/matzehuels/gitlab-composer/pkg/errors.TransportError
package integrations
