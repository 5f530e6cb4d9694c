package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/moderncpp/versync/internal/common/logger"
	"github.com/moderncpp/versync/internal/common/output"
	"github.com/moderncpp/versync/internal/propagate"
	"github.com/moderncpp/versync/internal/snapshot"
	"github.com/spf13/cobra"
)

var (
	// applyYes skips the confirmation prompt
	applyYes bool
	// applyDryRun computes and prints the plan without writing
	applyDryRun bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Propagate the recorded snapshot into the target artifacts",
	Long: `Read the snapshot written by 'versync check' and rewrite the version
tokens in the repository's build descriptor, documentation, test sources, and
CI matrix. The full set of planned replacements is shown and must be
confirmed before anything is written.

Examples:
  versync apply             Show the plan and ask for confirmation
  versync apply --yes       Apply without prompting (for automation)
  versync apply --dry-run   Show the plan and exit without writing`,
	Run: runApply,
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show what 'apply' would change, without writing",
	Run: func(cmd *cobra.Command, args []string) {
		applyDryRun = true
		runApply(cmd, args)
	},
}

func init() {
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "Skip confirmation prompt")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Compute and show the plan without writing")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(diffCmd)
}

func runApply(cmd *cobra.Command, args []string) {
	cfg, repoPath, err := resolveRepo()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	store := snapshot.NewStore(cfg.GetSnapshotPath(repoPath))
	snap, err := store.Read()
	if err != nil {
		if errors.Is(err, snapshot.ErrMissingSnapshot) {
			output.PrintError("%v", err)
		} else {
			output.PrintError("cannot read snapshot: %v", err)
		}
		os.Exit(1)
	}

	planner, err := propagate.NewPlanner(repoPath)
	if err != nil {
		logger.Error("invalid rule table: %v", err)
		os.Exit(1)
	}

	plan, err := planner.Plan(snap)
	if err != nil {
		logger.Error("planning failed: %v", err)
		os.Exit(1)
	}

	displayPlan(plan, snap)

	if !plan.HasChanges() {
		output.PrintSuccess("All artifacts already match the snapshot")
		return
	}

	if applyDryRun {
		output.PrintInfo("Dry run: no files were modified")
		return
	}

	if !applyYes && !confirmAction("Apply these changes?") {
		output.PrintInfo("Aborted: no files were modified")
		return
	}

	result := propagate.Apply(plan)
	displayApplyResult(result)

	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}

// displayPlan formats and displays the planned replacements, rule
// mismatches, and skipped rules.
func displayPlan(plan *propagate.Plan, snap *snapshot.Snapshot) {
	fmt.Println()
	output.Header.Println("Propagation Plan")
	fmt.Println()

	for _, fc := range plan.ChangedFiles() {
		output.Component.Printf("  %s\n", fc.Artifact)
		for _, r := range fc.Replacements {
			fmt.Printf("    %-24s line %-4d %s\n", r.Rule, r.Line, output.FormatVersionChange(r.Old, r.New))
		}
		fmt.Println()
	}

	if !plan.HasChanges() {
		output.Dim.Println("  (no replacements needed)")
		fmt.Println()
	}

	for _, m := range plan.Skipped {
		output.Printf(output.Skipped, "  skipped %s/%s: %s\n", m.Artifact, m.Rule, m.Reason)
	}
	for _, m := range plan.Mismatches {
		output.PrintWarning("rule %s found nothing in %s (%s)", m.Rule, m.Artifact, m.Reason)
	}
	if len(plan.Mismatches) > 0 {
		output.Dim.Println("  A mismatch usually means the artifact drifted from the expected format")
		fmt.Println()
	}
}

// displayApplyResult formats and displays the outcome of the writes.
func displayApplyResult(result *propagate.ApplyResult) {
	for _, path := range result.Applied {
		output.PrintSuccess("updated %s", path)
	}
	for _, f := range result.Failures {
		output.PrintError("%v", &f)
	}

	if len(result.Failures) == 0 {
		output.PrintSuccess("Applied %d artifact(s)", len(result.Applied))
	} else {
		output.PrintWarning("%d artifact(s) applied, %d failed", len(result.Applied), len(result.Failures))
	}
}

// confirmAction prompts the user for confirmation
func confirmAction(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
