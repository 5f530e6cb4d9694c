// Package snapshot defines the durable record of probed toolchain versions.
package snapshot

import (
	"time"
)

// Tracked component names
const (
	ComponentCMake = "cmake"
	ComponentGCC   = "gcc"
	ComponentClang = "clang"
)

// Unknown is the sentinel recorded when a probe could not determine a version.
// A snapshot never holds an empty version value.
const Unknown = "unknown"

// Language standard labels. These are maintained by hand, never probed.
const (
	StdCurrent = "23"
	StdNext    = "26"
)

// Components returns the tracked component names in canonical order.
func Components() []string {
	return []string{ComponentCMake, ComponentGCC, ComponentClang}
}

// Snapshot holds the most recently probed version for each tracked component
// plus the language standard labels and a capture timestamp.
// A snapshot is immutable once built; a new probe run produces a new snapshot.
type Snapshot struct {
	// versions maps component name to version string (never empty, may be Unknown)
	versions map[string]string
	// StdCurrentLabel is the language standard currently targeted
	StdCurrentLabel string
	// StdNextLabel is the upcoming language standard
	StdNextLabel string
	// CapturedAt is when the probe run completed
	CapturedAt time.Time
}

// New creates a snapshot with the standard labels and capture time set.
// Component versions default to Unknown until set.
func New(capturedAt time.Time) *Snapshot {
	return &Snapshot{
		versions:        make(map[string]string),
		StdCurrentLabel: StdCurrent,
		StdNextLabel:    StdNext,
		CapturedAt:      capturedAt,
	}
}

// Set records the version for a component. Empty values are coerced to the
// Unknown sentinel so absence is never represented by omission.
func (s *Snapshot) Set(component, version string) {
	if version == "" {
		version = Unknown
	}
	s.versions[component] = version
}

// Version returns the recorded version for a component.
// Components that were never set report the Unknown sentinel.
func (s *Snapshot) Version(component string) string {
	if v, ok := s.versions[component]; ok && v != "" {
		return v
	}
	return Unknown
}

// IsKnown reports whether the component has a determinable version.
func (s *Snapshot) IsKnown(component string) bool {
	return s.Version(component) != Unknown
}

// Equal reports whether two snapshots carry the same versions and labels.
// Capture timestamps are compared at second precision, matching what the
// on-disk format preserves.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if other == nil {
		return false
	}
	for _, name := range Components() {
		if s.Version(name) != other.Version(name) {
			return false
		}
	}
	return s.StdCurrentLabel == other.StdCurrentLabel &&
		s.StdNextLabel == other.StdNextLabel &&
		s.CapturedAt.Truncate(time.Second).Equal(other.CapturedAt.Truncate(time.Second))
}
