package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/httputil"
)

func newTestClient(server *httptest.Server, headers map[string]string) *Client {
	return NewClient(Options{
		Headers:    headers,
		HTTPClient: server.Client(),
		RetryDelay: time.Millisecond,
	})
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Options{Headers: map[string]string{"PRIVATE-TOKEN": "secret"}})

	if client.http == nil {
		t.Fatal("NewClient() http client is nil")
	}
	if client.http.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.http.Timeout, DefaultTimeout)
	}
	if client.attempts != 3 {
		t.Errorf("attempts = %d, want 3", client.attempts)
	}
	if client.headers["PRIVATE-TOKEN"] != "secret" {
		t.Error("NewClient() headers not set correctly")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	var token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		token = r.Header.Get("PRIVATE-TOKEN")
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := newTestClient(server, map[string]string{"PRIVATE-TOKEN": "secret"})

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
	if token != "secret" {
		t.Errorf("PRIVATE-TOKEN = %q, want %q", token, "secret")
	}
}

func TestClientGetWithHeadersOverridesDefaults(t *testing.T) {
	var receivedHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get("X-Override")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(server, map[string]string{"X-Override": "default"})

	var resp map[string]string
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"X-Override": "overridden"}, &resp)
	if err != nil {
		t.Fatalf("GetWithHeaders() error: %v", err)
	}
	if receivedHeader != "overridden" {
		t.Errorf("header = %q, want %q", receivedHeader, "overridden")
	}
}

func TestClientGetRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"acme/widget"}`))
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	body, err := client.GetRaw(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetRaw() error: %v", err)
	}
	if string(body) != `{"name":"acme/widget"}` {
		t.Errorf("GetRaw() = %q", body)
	}
}

func TestClientGetMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	var v []map[string]any
	err := client.Get(context.Background(), server.URL, &v)

	var te *errs.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Get() error = %v, want TransportError", err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", te.StatusCode)
	}
}

func TestClientGet404(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	var v any
	err := client.Get(context.Background(), server.URL, &v)

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if errs.StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", errs.StatusCode(err))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (status errors are not retried)", calls.Load())
	}
}

func TestClientGet500FailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	var v any
	err := client.Get(context.Background(), server.URL, &v)

	if errs.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Get() error = %v, want status 500", err)
	}
	if !errs.Is(err, errs.ErrCodeTransport) {
		t.Errorf("GetCode = %v, want %v", errs.GetCode(err), errs.ErrCodeTransport)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientNetworkErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Options{Attempts: 2, RetryDelay: time.Millisecond})
	var v any
	err := client.Get(context.Background(), url, &v)

	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Get() error = %v, want ErrNetwork", err)
	}
	if httputil.IsRetryable(err) {
		t.Error("returned error should not carry the retry marker")
	}
	if errs.StatusCode(err) != 0 {
		t.Errorf("StatusCode = %d, want 0", errs.StatusCode(err))
	}
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Options{Timeout: 20 * time.Millisecond, Attempts: 1})
	var v any
	err := client.Get(context.Background(), server.URL, &v)
	if !errs.Is(err, errs.ErrCodeTransport) {
		t.Errorf("Get() error = %v, want TransportError", err)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantErr  bool
		wantType error
	}{
		{"200 OK", 200, false, nil},
		{"204 No Content", 204, false, nil},
		{"404 Not Found", 404, true, ErrNotFound},
		{"500 Internal Server Error", 500, true, nil},
		{"401 Unauthorized", 401, true, nil},
		{"403 Forbidden", 403, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkStatus(%d) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			if errs.StatusCode(err) != tt.code {
				t.Errorf("StatusCode = %d, want %d", errs.StatusCode(err), tt.code)
			}
			if httputil.IsRetryable(err) {
				t.Error("status errors should not be retryable")
			}
		})
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"https://gitlab.example.com/acme/widget.git", "https://gitlab.example.com/acme/widget"},
		{"git+https://gitlab.example.com/acme/widget", "https://gitlab.example.com/acme/widget"},
		{"  https://gitlab.example.com/acme/widget/  ", "https://gitlab.example.com/acme/widget"},
	}
	for _, tt := range tests {
		if got := NormalizeRepoURL(tt.input); got != tt.want {
			t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestURLEncode(t *testing.T) {
	if got := URLEncode("acme/widget"); got != "acme%2Fwidget" {
		t.Errorf("URLEncode() = %q, want %q", got, "acme%2Fwidget")
	}
}
