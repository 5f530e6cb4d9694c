package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newQuietClient returns a client whose retries do not sleep.
func newQuietClient(config RetryConfig) *RetryableHTTPClient {
	c := NewRetryableHTTPClientWithConfig(config)
	c.SetDelayFunc(func(time.Duration) {})
	return c
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newQuietClient(DefaultRetryConfig())
	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestGetRetriesRateLimiting(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newQuietClient(DefaultRetryConfig())
	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after 429 retry", resp.StatusCode)
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newQuietClient(RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Timeout:    time.Second,
	})

	_, err := client.GetWithContext(context.Background(), server.URL)
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("error = %v, want ErrMaxRetriesExceeded", err)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newQuietClient(DefaultRetryConfig())
	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server called %d times, want 1 (no retry on 4xx)", got)
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewRetryableHTTPClientWithConfig(DefaultRetryConfig())
	client.SetDelayFunc(func(time.Duration) { cancel() })

	_, err := client.GetWithContext(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCalculateDelay(t *testing.T) {
	client := NewRetryableHTTPClientWithConfig(RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   4 * time.Second,
		Timeout:    time.Second,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 0},
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 4 * time.Second}, // capped at MaxDelay
	}

	for _, tt := range tests {
		if got := client.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCustomHeaders(t *testing.T) {
	t.Setenv("PROBE_TEST_TOKEN", "sekrit")

	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Auth")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newQuietClient(DefaultRetryConfig())
	resp, err := client.GetWithHeadersContext(context.Background(), server.URL,
		map[string]string{"X-Auth": "token ${PROBE_TEST_TOKEN}"})
	if err != nil {
		t.Fatalf("GetWithHeadersContext() error = %v", err)
	}
	resp.Body.Close()

	if gotHeader != "token sekrit" {
		t.Errorf("X-Auth header = %q, want env-substituted value", gotHeader)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("PROBE_SUB_A", "alpha")

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "${PROBE_SUB_A}", want: "alpha"},
		{in: "x-${PROBE_SUB_A}-y", want: "x-alpha-y"},
		{in: "${PROBE_SUB_UNSET}", want: ""},
	}

	for _, tt := range tests {
		if got := SubstituteEnvVars(tt.in); got != tt.want {
			t.Errorf("SubstituteEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGitHubTokenOnlySentToGitHub(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newQuietClient(DefaultRetryConfig())
	client.SetGitHubToken("tok123")

	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "" {
		t.Errorf("Authorization header = %q sent to non-GitHub host", gotAuth)
	}
}
