package httputil

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// NewTransport returns the round tripper used for API calls: the default
// transport with idle connection reuse sized to maxConns, wrapped so that
// gzip and zstd responses are negotiated and decoded transparently.
func NewTransport(maxConns int) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if maxConns > 0 {
		base.MaxIdleConnsPerHost = maxConns
		base.MaxConnsPerHost = maxConns
	}
	base.IdleConnTimeout = 90 * time.Second
	return gzhttp.Transport(base)
}

// NewHTTPClient returns a client with the given per-request timeout using
// [NewTransport].
func NewHTTPClient(timeout time.Duration, maxConns int) *http.Client {
	return &http.Client{Timeout: timeout, Transport: NewTransport(maxConns)}
}
