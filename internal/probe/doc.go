// Package probe queries upstream authorities for the latest published
// version of each tracked toolchain component.
//
// The package implements:
//   - Per-component source configuration via TOML files
//   - Version extraction from upstream responses (JSON path, regex, HTML)
//   - An HTTP client with exponential backoff for 5xx and rate-limit responses
//   - Fallback sources when a primary authority is unavailable
//
// Built-in sources cover the tracked components; a repository can override
// them in <repo>/.versync/components.toml. A component whose authority cannot
// be reached or parsed is reported with an error and recorded as unknown, so
// one failing authority never blocks the rest of a probe run.
//
// Usage:
//
//	sources, err := probe.LoadSources(repoPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	prober := probe.NewProber(probe.WithSources(sources))
//	snap, results := prober.ProbeAll(ctx, nil)
package probe
