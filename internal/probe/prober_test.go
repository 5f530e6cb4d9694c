package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moderncpp/versync/internal/snapshot"
)

// testSources builds a source config pointed at local test servers.
func testSources(cmakeURL, gccURL, clangURL string) *SourcesConfig {
	return &SourcesConfig{
		Components: map[string]Source{
			snapshot.ComponentCMake: {
				URL:         cmakeURL,
				Parser:      "json",
				Path:        "tag_name",
				StripPrefix: "v",
			},
			snapshot.ComponentGCC: {
				URL:      gccURL,
				Parser:   "html",
				Selector: "body",
				Pattern:  `GCC\s+(\d+\.\d+)`,
			},
			snapshot.ComponentClang: {
				URL:     clangURL,
				Parser:  "regex",
				Pattern: `"tag_name":\s*"llvmorg-(\d+(?:\.\d+)*)"`,
			},
		},
	}
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func failingServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestProber(sources *SourcesConfig) *Prober {
	client := NewRetryableHTTPClientWithConfig(RetryConfig{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Timeout:    5 * time.Second,
	})
	client.SetDelayFunc(func(time.Duration) {})

	return NewProber(
		WithSources(sources),
		WithHTTPClient(client),
		WithNowFunc(func() time.Time {
			return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		}),
	)
}

func TestProbeAll(t *testing.T) {
	cmake := jsonServer(t, `{"tag_name": "v4.1.2", "name": "CMake 4.1.2"}`)
	gcc := htmlServer(t, `<html><body><table><tr><td>GCC 15.2</td><td>August 8, 2025</td></tr></table></body></html>`)
	clang := jsonServer(t, `[{"tag_name": "llvmorg-22-init"}, {"tag_name": "llvmorg-21.1.5"}]`)

	prober := newTestProber(testSources(cmake.URL, gcc.URL, clang.URL))
	snap, results := prober.ProbeAll(context.Background(), nil)

	want := map[string]string{
		snapshot.ComponentCMake: "4.1.2",
		snapshot.ComponentGCC:   "15.2",
		snapshot.ComponentClang: "21.1.5",
	}
	for name, version := range want {
		if got := snap.Version(name); got != version {
			t.Errorf("Version(%q) = %q, want %q", name, got, version)
		}
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("probe %s: unexpected error %v", r.Component, r.Err)
		}
	}
}

func TestProbeAllPartialFailure(t *testing.T) {
	cmake := jsonServer(t, `{"tag_name": "v4.1.2"}`)
	gcc := failingServer(t, http.StatusServiceUnavailable)
	clang := jsonServer(t, `[{"tag_name": "llvmorg-21.1.5"}]`)

	prober := newTestProber(testSources(cmake.URL, gcc.URL, clang.URL))
	snap, results := prober.ProbeAll(context.Background(), nil)

	// The failed component carries the sentinel, the rest are intact
	if got := snap.Version(snapshot.ComponentGCC); got != snapshot.Unknown {
		t.Errorf("Version(gcc) = %q, want sentinel after authority failure", got)
	}
	if got := snap.Version(snapshot.ComponentCMake); got != "4.1.2" {
		t.Errorf("Version(cmake) = %q, want %q", got, "4.1.2")
	}
	if got := snap.Version(snapshot.ComponentClang); got != "21.1.5" {
		t.Errorf("Version(clang) = %q, want %q", got, "21.1.5")
	}

	var gccResult *Result
	for i := range results {
		if results[i].Component == snapshot.ComponentGCC {
			gccResult = &results[i]
		}
	}
	if gccResult == nil || gccResult.Err == nil {
		t.Error("gcc result should carry the probe error")
	}
}

func TestProbeAllRateLimited(t *testing.T) {
	cmake := failingServer(t, http.StatusTooManyRequests)
	gcc := htmlServer(t, `<html><body>GCC 15.2</body></html>`)
	clang := jsonServer(t, `[{"tag_name": "llvmorg-21.1.5"}]`)

	prober := newTestProber(testSources(cmake.URL, gcc.URL, clang.URL))
	snap, _ := prober.ProbeAll(context.Background(), nil)

	if got := snap.Version(snapshot.ComponentCMake); got != snapshot.Unknown {
		t.Errorf("Version(cmake) = %q, want sentinel after sustained 429", got)
	}
	if got := snap.Version(snapshot.ComponentGCC); got != "15.2" {
		t.Errorf("Version(gcc) = %q, other probes must survive a rate-limited one", got)
	}
}

func TestProbeAllSkip(t *testing.T) {
	cmake := jsonServer(t, `{"tag_name": "v4.1.2"}`)
	gcc := htmlServer(t, `<html><body>GCC 15.2</body></html>`)
	clang := jsonServer(t, `[{"tag_name": "llvmorg-21.1.5"}]`)

	prober := newTestProber(testSources(cmake.URL, gcc.URL, clang.URL))
	snap, results := prober.ProbeAll(context.Background(), []string{snapshot.ComponentGCC})

	if got := snap.Version(snapshot.ComponentGCC); got != snapshot.Unknown {
		t.Errorf("Version(gcc) = %q, want sentinel for skipped component", got)
	}

	for _, r := range results {
		if r.Component == snapshot.ComponentGCC && !r.Skipped {
			t.Error("gcc result not marked as skipped")
		}
	}
}

func TestProbeAllSetsCaptureTime(t *testing.T) {
	cmake := jsonServer(t, `{"tag_name": "v4.1.2"}`)
	gcc := htmlServer(t, `<html><body>GCC 15.2</body></html>`)
	clang := jsonServer(t, `[{"tag_name": "llvmorg-21.1.5"}]`)

	prober := newTestProber(testSources(cmake.URL, gcc.URL, clang.URL))
	snap, _ := prober.ProbeAll(context.Background(), nil)

	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if !snap.CapturedAt.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v", snap.CapturedAt, want)
	}
	if snap.StdCurrentLabel != snapshot.StdCurrent || snap.StdNextLabel != snapshot.StdNext {
		t.Error("snapshot missing the hardcoded standard labels")
	}
}

func TestProbeComponentFallback(t *testing.T) {
	primary := failingServer(t, http.StatusInternalServerError)
	fallback := htmlServer(t, `<html><body>GCC 15.2</body></html>`)

	sources := &SourcesConfig{
		Components: map[string]Source{
			snapshot.ComponentGCC: {
				URL:             primary.URL,
				Parser:          "html",
				Selector:        "body",
				Pattern:         `GCC\s+(\d+\.\d+)`,
				FallbackURL:     fallback.URL,
				FallbackParser:  "regex",
				FallbackPattern: `GCC\s+(\d+\.\d+)`,
			},
		},
	}

	prober := newTestProber(sources)
	got, err := prober.ProbeComponent(context.Background(), snapshot.ComponentGCC)
	if err != nil {
		t.Fatalf("ProbeComponent() error = %v", err)
	}
	if got != "15.2" {
		t.Errorf("ProbeComponent() = %q, want %q from fallback", got, "15.2")
	}
}

func TestProbeComponentNotConfigured(t *testing.T) {
	prober := newTestProber(&SourcesConfig{Components: map[string]Source{}})

	if _, err := prober.ProbeComponent(context.Background(), snapshot.ComponentCMake); err == nil {
		t.Error("ProbeComponent() succeeded for unconfigured component")
	}
}
