package main

import (
	"fmt"
	"os"

	"github.com/moderncpp/versync/internal/common/config"
	"github.com/moderncpp/versync/internal/common/logger"
	"github.com/moderncpp/versync/internal/common/output"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	quiet    bool
	noColor  bool
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "versync",
	Short: "Toolchain version synchronization",
	Long: `Keeps the toolchain versions quoted in a C++ demo repository in sync
with the latest upstream releases. 'check' probes upstream authorities and
records a snapshot; 'apply' propagates the snapshot into the repository's
build files, docs, test sources, and CI matrix.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Configure logging based on flags
		if verbose {
			logger.SetVerbose(true)
		}
		if quiet {
			logger.SetQuiet(true)
		}
		if noColor {
			output.NoColor()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (overrides configured path)")
}

// resolveRepo loads the configuration and determines the repository root.
// The --repo flag takes precedence over the configured path.
func resolveRepo() (*config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}

	if repoFlag != "" {
		cfg.Repo.Path = repoFlag
	}

	repoPath, err := cfg.GetRepoPath()
	if err != nil {
		return nil, "", err
	}

	return cfg, repoPath, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
