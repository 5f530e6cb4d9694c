// Package propagate rewrites version tokens in target artifacts to match a snapshot.
package propagate

import (
	"regexp"
	"strings"

	"github.com/moderncpp/versync/internal/snapshot"
)

// Bindings for the language standard labels. Tracked component rules bind
// directly to the snapshot component names.
const (
	BindStdCurrent = "std_current"
	BindStdNext    = "std_next"
)

// Rule binds one anchored pattern in one target artifact to a snapshot value.
// The pattern must contain a capture group named "ver" marking the version
// token to replace, and may contain a group named "date" marking a month/year
// cell that is refreshed whenever the version token changes.
//
// Rules are anchored to semantic context (a table row label, a directive, a
// flag prefix) rather than bare version-looking tokens, so unrelated version
// strings in the same file are never touched. No two rules on the same
// artifact may match overlapping spans; the planner rejects such rule sets.
type Rule struct {
	// Artifact is the target file path relative to the repository root
	Artifact string
	// Name identifies the rule in plans and mismatch reports
	Name string
	// Binding names the snapshot component or standard label providing the value
	Binding string
	// Pattern anchors the rewrite within the artifact
	Pattern *regexp.Regexp
	// Transform optionally derives the written token from the snapshot value
	// (e.g. major-only for CI matrix entries). Nil means use the value as-is.
	Transform func(string) string
}

// Major reduces a dotted version to its major component ("21.1.5" -> "21").
func Major(v string) string {
	if i := strings.IndexByte(v, '.'); i >= 0 {
		return v[:i]
	}
	return v
}

// DefaultRules returns the rewrite rules for the fixed set of target artifacts.
func DefaultRules() []Rule {
	return []Rule{
		// Build descriptor
		{
			Artifact: "CMakeLists.txt",
			Name:     "cmake-minimum-required",
			Binding:  snapshot.ComponentCMake,
			Pattern:  regexp.MustCompile(`(?m)^cmake_minimum_required\(VERSION (?P<ver>\d+(?:\.\d+)*)\)`),
		},
		{
			Artifact: "CMakeLists.txt",
			Name:     "cmake-requires-comment",
			Binding:  snapshot.ComponentCMake,
			Pattern:  regexp.MustCompile(`# Requires CMake (?P<ver>\d+(?:\.\d+)*)\+`),
		},

		// README version table and inline mentions
		{
			Artifact: "README.md",
			Name:     "readme-cmake-row",
			Binding:  snapshot.ComponentCMake,
			Pattern:  regexp.MustCompile(`(?m)^\| CMake \| (?P<ver>\d+(?:\.\d+)*) \| (?P<date>[A-Z][a-z]{2} \d{4}) \|`),
		},
		{
			Artifact: "README.md",
			Name:     "readme-gcc-row",
			Binding:  snapshot.ComponentGCC,
			Pattern:  regexp.MustCompile(`(?m)^\| GCC \| (?P<ver>\d+(?:\.\d+)*) \| (?P<date>[A-Z][a-z]{2} \d{4}) \|`),
		},
		{
			Artifact: "README.md",
			Name:     "readme-clang-row",
			Binding:  snapshot.ComponentClang,
			Pattern:  regexp.MustCompile(`(?m)^\| Clang \| (?P<ver>\d+(?:\.\d+)*) \| (?P<date>[A-Z][a-z]{2} \d{4}) \|`),
		},
		{
			Artifact: "README.md",
			Name:     "readme-gcc-inline",
			Binding:  snapshot.ComponentGCC,
			Pattern:  regexp.MustCompile(`GCC (?P<ver>\d+(?:\.\d+)*) or newer`),
		},
		{
			Artifact: "README.md",
			Name:     "readme-clang-inline",
			Binding:  snapshot.ComponentClang,
			Pattern:  regexp.MustCompile(`Clang (?P<ver>\d+(?:\.\d+)*) or newer`),
		},

		// Build documentation
		{
			Artifact: "docs/BUILDING.md",
			Name:     "building-cmake-row",
			Binding:  snapshot.ComponentCMake,
			Pattern:  regexp.MustCompile(`(?m)^\| CMake \| (?P<ver>\d+(?:\.\d+)*) \| (?P<date>[A-Z][a-z]{2} \d{4}) \|`),
		},
		{
			Artifact: "docs/BUILDING.md",
			Name:     "building-gcc-row",
			Binding:  snapshot.ComponentGCC,
			Pattern:  regexp.MustCompile(`(?m)^\| GCC \| (?P<ver>\d+(?:\.\d+)*) \| (?P<date>[A-Z][a-z]{2} \d{4}) \|`),
		},
		{
			Artifact: "docs/BUILDING.md",
			Name:     "building-clang-row",
			Binding:  snapshot.ComponentClang,
			Pattern:  regexp.MustCompile(`(?m)^\| Clang \| (?P<ver>\d+(?:\.\d+)*) \| (?P<date>[A-Z][a-z]{2} \d{4}) \|`),
		},
		{
			Artifact: "docs/BUILDING.md",
			Name:     "building-std-flag",
			Binding:  BindStdCurrent,
			Pattern:  regexp.MustCompile(`-std=c\+\+(?P<ver>\d{2})`),
		},
		{
			Artifact: "docs/BUILDING.md",
			Name:     "building-std-next",
			Binding:  BindStdNext,
			Pattern:  regexp.MustCompile(`upcoming C\+\+(?P<ver>\d{2})`),
		},

		// Test source literal output strings
		{
			Artifact: "test.cpp",
			Name:     "test-print-gcc",
			Binding:  snapshot.ComponentGCC,
			Pattern:  regexp.MustCompile(`with GCC (?P<ver>\d+(?:\.\d+)*)`),
		},
		{
			Artifact: "test.cpp",
			Name:     "test-print-clang",
			Binding:  snapshot.ComponentClang,
			Pattern:  regexp.MustCompile(`Clang (?P<ver>\d+(?:\.\d+)*)`),
		},
		{
			Artifact: "test.cpp",
			Name:     "test-print-cmake",
			Binding:  snapshot.ComponentCMake,
			Pattern:  regexp.MustCompile(`CMake version: (?P<ver>\d+(?:\.\d+)*)\+`),
		},

		// CI compiler matrix
		{
			Artifact:  ".github/workflows/ci.yml",
			Name:      "ci-gcc-matrix",
			Binding:   snapshot.ComponentGCC,
			Pattern:   regexp.MustCompile(`gcc-(?P<ver>\d+)`),
			Transform: Major,
		},
		{
			Artifact:  ".github/workflows/ci.yml",
			Name:      "ci-clang-matrix",
			Binding:   snapshot.ComponentClang,
			Pattern:   regexp.MustCompile(`clang-(?P<ver>\d+)`),
			Transform: Major,
		},
	}
}

// resolveBinding looks up the value a rule writes, from the snapshot.
func resolveBinding(s *snapshot.Snapshot, binding string) string {
	switch binding {
	case BindStdCurrent:
		return s.StdCurrentLabel
	case BindStdNext:
		return s.StdNextLabel
	default:
		return s.Version(binding)
	}
}

// Artifacts returns the distinct artifact paths referenced by the rules,
// in first-appearance order.
func Artifacts(rules []Rule) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, r := range rules {
		if !seen[r.Artifact] {
			seen[r.Artifact] = true
			paths = append(paths, r.Artifact)
		}
	}
	return paths
}
