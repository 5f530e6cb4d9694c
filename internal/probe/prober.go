package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moderncpp/versync/internal/snapshot"
)

// Error variables for prober errors
var (
	// ErrComponentNotConfigured is returned when a component has no probe source
	ErrComponentNotConfigured = errors.New("component has no probe source configured")
	// ErrFetchFailed is returned when fetching an upstream version fails
	ErrFetchFailed = errors.New("failed to fetch upstream version")
)

// Result represents the outcome of probing a single component.
type Result struct {
	// Component is the tracked component name
	Component string
	// Version is the determined version, or the Unknown sentinel on failure
	Version string
	// Err holds the probe failure, if any. A failed probe never aborts
	// the run; the error is carried here for reporting only.
	Err error
	// Skipped is true if the component was excluded from this run
	Skipped bool
}

// Prober determines the latest upstream version for each tracked component.
// Probes are read-only against the external authorities.
type Prober struct {
	sources    *SourcesConfig
	httpClient *RetryableHTTPClient
	// nowFunc allows injecting time for testing
	nowFunc func() time.Time
}

// ProberOption is a functional option for configuring Prober
type ProberOption func(*Prober)

// WithHTTPClient sets a custom HTTP client for the prober
func WithHTTPClient(client *RetryableHTTPClient) ProberOption {
	return func(p *Prober) {
		p.httpClient = client
	}
}

// WithSources sets custom probe sources
func WithSources(sources *SourcesConfig) ProberOption {
	return func(p *Prober) {
		p.sources = sources
	}
}

// WithNowFunc sets a custom time function for testing
func WithNowFunc(fn func() time.Time) ProberOption {
	return func(p *Prober) {
		p.nowFunc = fn
	}
}

// NewProber creates a prober with the built-in default sources.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		sources: DefaultSources(),
		nowFunc: time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.httpClient == nil {
		p.httpClient = NewRetryableHTTPClient()
	}

	return p
}

// ProbeAll probes every tracked component and assembles a snapshot.
// A single component's failure never aborts the others: failures are
// recorded in the result and the snapshot carries the Unknown sentinel.
// Components listed in skip are excluded and left at Unknown.
func (p *Prober) ProbeAll(ctx context.Context, skip []string) (*snapshot.Snapshot, []Result) {
	skipSet := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipSet[name] = true
	}

	snap := snapshot.New(p.nowFunc())
	results := make([]Result, 0, len(snapshot.Components()))

	for _, name := range snapshot.Components() {
		if skipSet[name] {
			snap.Set(name, snapshot.Unknown)
			results = append(results, Result{Component: name, Version: snapshot.Unknown, Skipped: true})
			continue
		}

		version, err := p.ProbeComponent(ctx, name)
		if err != nil {
			snap.Set(name, snapshot.Unknown)
			results = append(results, Result{Component: name, Version: snapshot.Unknown, Err: err})
			continue
		}

		snap.Set(name, version)
		results = append(results, Result{Component: name, Version: version})
	}

	return snap, results
}

// ProbeComponent determines the latest version of a single component.
// It tries the primary source first, then the fallback if configured.
func (p *Prober) ProbeComponent(ctx context.Context, name string) (string, error) {
	src, exists := p.sources.Components[name]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrComponentNotConfigured, name)
	}

	version, err := p.fetchAndParse(ctx, &src, false)
	if err == nil {
		return version, nil
	}
	primaryErr := err

	// Try fallback source if configured
	if src.FallbackURL != "" && src.FallbackParser != "" {
		version, err = p.fetchAndParse(ctx, &src, true)
		if err == nil {
			return version, nil
		}
	}

	return "", fmt.Errorf("%w: %v", ErrFetchFailed, primaryErr)
}

// fetchAndParse fetches content from the source's URL and extracts the version.
func (p *Prober) fetchAndParse(ctx context.Context, src *Source, fallback bool) (string, error) {
	url := src.URL
	parserSrc := src
	if fallback {
		url = src.FallbackURL
		fallbackPattern := src.FallbackPattern
		if fallbackPattern == "" && src.FallbackParser == "json" {
			fallbackPattern = src.Path // Use primary path for JSON fallback
		}
		parserSrc = &Source{
			Parser:   src.FallbackParser,
			Path:     src.Path,
			Pattern:  fallbackPattern,
			Selector: src.Selector,
			XPath:    src.XPath,
		}
	}

	content, err := p.fetchContent(ctx, url, src.Headers)
	if err != nil {
		return "", err
	}

	parser, err := NewParser(parserSrc)
	if err != nil {
		return "", fmt.Errorf("failed to create parser: %w", err)
	}

	version, err := parser.Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse version: %w", err)
	}

	if src.StripPrefix != "" {
		version = strings.TrimPrefix(version, src.StripPrefix)
	}

	version = strings.TrimSpace(version)
	if version == "" {
		return "", ErrNoVersionFound
	}

	return version, nil
}

// fetchContent fetches content from a URL using the HTTP client with retry logic.
func (p *Prober) fetchContent(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.httpClient.Config().Timeout)
	defer cancel()

	resp, err := p.httpClient.GetWithHeadersContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return content, nil
}

// Sources returns the probe sources configuration.
func (p *Prober) Sources() *SourcesConfig {
	return p.sources
}
