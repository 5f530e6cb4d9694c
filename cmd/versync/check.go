package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/moderncpp/versync/internal/common/config"
	"github.com/moderncpp/versync/internal/common/logger"
	"github.com/moderncpp/versync/internal/common/output"
	"github.com/moderncpp/versync/internal/probe"
	"github.com/moderncpp/versync/internal/snapshot"
	"github.com/moderncpp/versync/internal/vercmp"
	"github.com/spf13/cobra"
)

var (
	// checkSkip lists components to exclude from this probe run
	checkSkip []string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe upstream versions and record a snapshot",
	Long: `Query each upstream authority for its latest published version and
write the results to the snapshot file. A component whose authority is
unreachable or unparseable is recorded as "unknown"; a single failure never
aborts the probe for the others.

Examples:
  versync check                 Probe all components
  versync check --skip gcc      Probe all except the GCC releases page`,
	Run: runCheck,
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkSkip, "skip", nil, "Components to skip (may be repeated)")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, repoPath, err := resolveRepo()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	sources, err := probe.LoadSources(repoPath)
	if err != nil {
		logger.Error("loading probe sources: %v", err)
		os.Exit(1)
	}

	prober := probe.NewProber(
		probe.WithSources(sources),
		probe.WithHTTPClient(newHTTPClient(cfg)),
	)

	store := snapshot.NewStore(cfg.GetSnapshotPath(repoPath))

	// Previous snapshot, if any, for change reporting. A malformed previous
	// snapshot is not fatal here; it will be overwritten by this run.
	var previous *snapshot.Snapshot
	if prev, err := store.Read(); err == nil {
		previous = prev
	} else if !errors.Is(err, snapshot.ErrMissingSnapshot) {
		logger.Warn("previous snapshot unreadable, will be overwritten: %v", err)
	}

	snap, results := prober.ProbeAll(context.Background(), checkSkip)

	if err := store.Write(snap); err != nil {
		logger.Error("writing snapshot: %v", err)
		os.Exit(1)
	}

	displayCheckResults(results, previous, snap)
	logger.Debug("snapshot written to %s", store.Path())
}

// newHTTPClient builds the probe HTTP client from the application config.
func newHTTPClient(cfg *config.Config) *probe.RetryableHTTPClient {
	retryCfg := probe.DefaultRetryConfig()
	if cfg.HTTP.TimeoutSeconds > 0 {
		retryCfg.Timeout = time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	}
	if cfg.HTTP.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.HTTP.MaxRetries
	}

	client := probe.NewRetryableHTTPClientWithConfig(retryCfg)
	if token := cfg.GetGitHubToken(); token != "" {
		client.SetGitHubToken(token)
	}
	return client
}

// displayCheckResults formats and displays probe results, including changes
// against the previous snapshot when one exists.
func displayCheckResults(results []probe.Result, previous, current *snapshot.Snapshot) {
	fmt.Println()
	output.Header.Println("Upstream Version Check")
	fmt.Println()

	var changed int
	var failed int

	for _, r := range results {
		name := output.FormatComponent(r.Component)

		switch {
		case r.Skipped:
			output.Printf(output.Skipped, "  %s: skipped\n", name)
		case r.Err != nil:
			failed++
			output.Warning.Printf("  %s: %s\n", name, snapshot.Unknown)
			logger.Debug("probe %s: %v", r.Component, r.Err)
		case previous != nil && previous.IsKnown(r.Component) && previous.Version(r.Component) != r.Version:
			changed++
			direction := "changed"
			if vercmp.Compare(r.Version, previous.Version(r.Component)) > 0 {
				direction = "newer"
			}
			output.Success.Printf("  %s: %s (%s)\n", name,
				output.FormatVersionChange(previous.Version(r.Component), r.Version), direction)
		default:
			output.Dim.Printf("  %s: %s\n", name, r.Version)
		}
	}

	fmt.Println()
	output.Dim.Printf("  std: C++%s (next C++%s), captured %s\n",
		current.StdCurrentLabel, current.StdNextLabel,
		current.CapturedAt.Format(time.RFC3339))
	fmt.Println()

	if changed > 0 {
		output.Info.Printf("%d component(s) changed since last check\n", changed)
		output.Info.Println("Use 'versync apply' to propagate the new versions")
	} else if previous != nil {
		output.PrintSuccess("No version changes since last check")
	}

	if failed > 0 {
		output.PrintWarning("%d component(s) could not be determined", failed)
	}
}
