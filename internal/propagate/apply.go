package propagate

import (
	"fmt"
	"io/fs"
	"os"
)

// WriteFailure records a failed write to one target artifact.
// Failures are isolated per file: a failed artifact never prevents the
// remaining artifacts from being written.
type WriteFailure struct {
	// Artifact is the path relative to the repository root
	Artifact string
	// Err is the underlying write error
	Err error
}

func (f *WriteFailure) Error() string {
	return fmt.Sprintf("failed to write %s: %v", f.Artifact, f.Err)
}

// ApplyResult summarizes a propagation run.
type ApplyResult struct {
	// Applied lists artifacts that were rewritten
	Applied []string
	// Unchanged lists artifacts that already matched the snapshot
	Unchanged []string
	// Failures lists per-artifact write failures
	Failures []WriteFailure
}

// Apply writes every changed artifact in the plan.
// Each artifact is written atomically: content goes to a temporary file in
// the same directory which is renamed over the original, so an interrupted
// run never leaves a half-written artifact. Write failures are isolated per
// file so otherwise-valid updates are not lost.
func Apply(plan *Plan) *ApplyResult {
	result := &ApplyResult{}

	for i := range plan.Files {
		fc := &plan.Files[i]
		if !fc.Changed() {
			result.Unchanged = append(result.Unchanged, fc.Artifact)
			continue
		}

		if err := writeAtomic(fc.AbsPath, fc.Updated); err != nil {
			result.Failures = append(result.Failures, WriteFailure{Artifact: fc.Artifact, Err: err})
			continue
		}
		result.Applied = append(result.Applied, fc.Artifact)
	}

	return result
}

// writeAtomic writes content to path via a temporary file and rename,
// preserving the original file mode.
func writeAtomic(path string, content []byte) error {
	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, mode); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return err
	}

	return nil
}
