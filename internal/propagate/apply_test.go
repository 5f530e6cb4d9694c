package propagate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyWritesChangedFiles(t *testing.T) {
	repo := writeFixtureRepo(t)
	planner := newFixturePlanner(t, repo)

	plan, err := planner.Plan(testSnapshot())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	result := Apply(plan)
	if len(result.Failures) != 0 {
		t.Fatalf("Apply() failures: %+v", result.Failures)
	}
	if len(result.Applied) == 0 {
		t.Fatal("Apply() reported nothing applied for a stale repository")
	}

	data, err := os.ReadFile(filepath.Join(repo, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "| CMake | 4.1.2 | Oct 2025 |") {
		t.Errorf("README on disk not updated:\n%s", data)
	}

	// No temp files left behind
	entries, err := os.ReadDir(repo)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestApplyLeavesCurrentFilesAlone(t *testing.T) {
	repo := writeFixtureRepo(t)
	planner := newFixturePlanner(t, repo)
	snap := testSnapshot()

	first, err := planner.Plan(snap)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	Apply(first)

	second, err := planner.Plan(snap)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	result := Apply(second)
	if len(result.Applied) != 0 {
		t.Errorf("Apply() rewrote already-current artifacts: %v", result.Applied)
	}
	if len(result.Unchanged) != len(second.Files) {
		t.Errorf("Unchanged = %d artifacts, want all %d", len(result.Unchanged), len(second.Files))
	}
}

func TestApplyIsolatesFailures(t *testing.T) {
	repo := writeFixtureRepo(t)
	planner := newFixturePlanner(t, repo)

	plan, err := planner.Plan(testSnapshot())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	// Redirect one artifact into a directory that does not exist so its
	// write fails while the others proceed.
	for i := range plan.Files {
		if plan.Files[i].Artifact == "README.md" {
			plan.Files[i].AbsPath = filepath.Join(repo, "missing", "README.md")
		}
	}

	result := Apply(plan)

	if len(result.Failures) != 1 {
		t.Fatalf("got %d failures, want 1: %+v", len(result.Failures), result.Failures)
	}
	if result.Failures[0].Artifact != "README.md" {
		t.Errorf("failure artifact = %s, want README.md", result.Failures[0].Artifact)
	}
	if msg := result.Failures[0].Error(); !strings.Contains(msg, "README.md") {
		t.Errorf("failure message %q does not name the artifact", msg)
	}

	// The failed artifact keeps its original content
	data, err := os.ReadFile(filepath.Join(repo, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != fixtureREADME {
		t.Error("failed artifact was modified")
	}

	// Other artifacts were still written
	cml, err := os.ReadFile(filepath.Join(repo, "CMakeLists.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(cml), "4.1.2") {
		t.Error("write failure on one artifact blocked the others")
	}
}

func TestWriteAtomicPreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := writeAtomic(path, []byte("#!/bin/sh\necho updated\n")); err != nil {
		t.Fatalf("writeAtomic() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %v, want 0755 preserved", info.Mode().Perm())
	}
}
