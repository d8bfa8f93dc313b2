package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/gitlab-composer/pkg/buildinfo"
	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/httputil"
	"github.com/matzehuels/gitlab-composer/pkg/observability"
)

// Options configures a [Client]. Zero values select the defaults.
type Options struct {
	// Headers are applied to every request (for example PRIVATE-TOKEN).
	Headers map[string]string
	// Timeout bounds each HTTP call. Defaults to 10s.
	Timeout time.Duration
	// Limiter caps in-flight requests. Nil means unlimited.
	Limiter *httputil.Limiter
	// Attempts is the number of tries for network-level failures.
	// Defaults to 3.
	Attempts int
	// RetryDelay is the initial backoff between attempts. Defaults to 1s.
	RetryDelay time.Duration
	// HTTPClient overrides the client built from Timeout and Limiter.
	HTTPClient *http.Client
}

// Client provides shared HTTP functionality for remote API clients.
// It handles authentication headers, the concurrency ceiling, retry of
// network failures, and mapping of failures onto [errs.TransportError].
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http       *http.Client
	headers    map[string]string
	limiter    *httputil.Limiter
	attempts   int
	retryDelay time.Duration
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = httputil.NewHTTPClient(opts.Timeout, opts.Limiter.Size())
	}
	return &Client{
		http:       hc,
		headers:    opts.Headers,
		limiter:    opts.Limiter,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
	}
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// A body that is not valid JSON for v is reported as a TransportError with
// status 0.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	return c.GetWithHeaders(ctx, rawURL, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	body, err := c.fetch(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &errs.TransportError{Message: "malformed JSON from " + redact(rawURL), Cause: err}
	}
	return nil
}

// GetRaw performs an HTTP GET request and returns the response body.
func (c *Client) GetRaw(ctx context.Context, rawURL string) ([]byte, error) {
	return c.fetch(ctx, rawURL, nil)
}

func (c *Client) fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	var body []byte
	err := httputil.Retry(ctx, c.attempts, c.retryDelay, func() error {
		var err error
		body, err = c.doRequest(ctx, rawURL, headers)
		return err
	})
	if err != nil {
		return nil, unwrapRetryable(err)
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errs.TransportError{Message: "invalid request", Cause: err}
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, &errs.TransportError{Message: "request not started", Cause: err}
	}
	defer c.limiter.Release()

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, httputil.Retryable(&errs.TransportError{
			Message: fmt.Sprintf("GET %s", redact(rawURL)),
			Cause:   fmt.Errorf("%w: %v", ErrNetwork, stripURL(err)),
		})
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Retryable(&errs.TransportError{
			Message: "reading body of " + redact(rawURL),
			Cause:   fmt.Errorf("%w: %v", ErrNetwork, err),
		})
	}
	return data, nil
}

// checkStatus maps a non-2xx status onto a TransportError. Only network
// failures are retried by the client; status errors return immediately and
// callers decide (the manifest fetcher retries 404s itself).
func checkStatus(code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	te := &errs.TransportError{StatusCode: code, Message: http.StatusText(code)}
	if code == http.StatusNotFound {
		te.Cause = ErrNotFound
	}
	return te
}

func unwrapRetryable(err error) error {
	var re *httputil.RetryableError
	if errors.As(err, &re) {
		return re.Err
	}
	return err
}

// stripURL drops the *url.Error wrapper so the request URL, which may carry
// query parameters, is not repeated in the message.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// redact returns rawURL without its query string.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}
