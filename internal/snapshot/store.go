package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Error variables for store errors
var (
	// ErrMissingSnapshot is returned when no snapshot file exists yet
	ErrMissingSnapshot = errors.New("no snapshot found: run 'versync check' first")
	// ErrMalformedSnapshot is returned when the snapshot file cannot be parsed
	ErrMalformedSnapshot = errors.New("snapshot file is malformed")
)

// Snapshot file keys, written in this order
const (
	keyCMake      = "CMAKE_VERSION"
	keyGCC        = "GCC_VERSION"
	keyClang      = "CLANG_VERSION"
	keyStdCurrent = "STD_CURRENT"
	keyStdNext    = "STD_NEXT"
	keyCapturedAt = "CAPTURED_AT"
)

// componentKeys maps component names to their snapshot file keys
var componentKeys = map[string]string{
	ComponentCMake: keyCMake,
	ComponentGCC:   keyGCC,
	ComponentClang: keyClang,
}

// Store persists snapshots as flat KEY=value text files.
// The file on disk is the sole durable copy; writes replace it atomically.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (st *Store) Path() string {
	return st.path
}

// Exists reports whether a snapshot file is present.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.path)
	return err == nil
}

// Write serializes the snapshot to disk.
// The file is written to a temporary location and renamed into place so an
// interrupted run never leaves a half-written snapshot as the durable copy.
func (st *Store) Write(s *Snapshot) error {
	var b strings.Builder
	for _, name := range Components() {
		fmt.Fprintf(&b, "%s=%s\n", componentKeys[name], s.Version(name))
	}
	fmt.Fprintf(&b, "%s=%s\n", keyStdCurrent, s.StdCurrentLabel)
	fmt.Fprintf(&b, "%s=%s\n", keyStdNext, s.StdNextLabel)
	fmt.Fprintf(&b, "%s=%s\n", keyCapturedAt, s.CapturedAt.Truncate(time.Second).Format(time.RFC3339))

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := st.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, st.path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	return nil
}

// Read loads the snapshot from disk.
// Returns ErrMissingSnapshot if no file exists, or ErrMalformedSnapshot with
// the offending line on the first parse failure (fail-fast, line-by-line).
func (st *Store) Read() (*Snapshot, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissingSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	values := make(map[string]string)
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, found := strings.Cut(trimmed, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %d: %q is not a KEY=value assignment", ErrMalformedSnapshot, i+1, trimmed)
		}
		if !isKnownKey(key) {
			return nil, fmt.Errorf("%w: line %d: unknown key %q", ErrMalformedSnapshot, i+1, key)
		}
		if value == "" {
			return nil, fmt.Errorf("%w: line %d: empty value for %q", ErrMalformedSnapshot, i+1, key)
		}
		if _, dup := values[key]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate key %q", ErrMalformedSnapshot, i+1, key)
		}
		values[key] = value
	}

	// All keys are required
	for _, key := range []string{keyCMake, keyGCC, keyClang, keyStdCurrent, keyStdNext, keyCapturedAt} {
		if _, ok := values[key]; !ok {
			return nil, fmt.Errorf("%w: missing key %q", ErrMalformedSnapshot, key)
		}
	}

	capturedAt, err := time.Parse(time.RFC3339, values[keyCapturedAt])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", ErrMalformedSnapshot, keyCapturedAt, err)
	}

	s := New(capturedAt)
	s.StdCurrentLabel = values[keyStdCurrent]
	s.StdNextLabel = values[keyStdNext]
	for name, key := range componentKeys {
		s.Set(name, values[key])
	}

	return s, nil
}

// isKnownKey checks whether a key belongs to the snapshot format.
func isKnownKey(key string) bool {
	switch key {
	case keyCMake, keyGCC, keyClang, keyStdCurrent, keyStdNext, keyCapturedAt:
		return true
	}
	return false
}
