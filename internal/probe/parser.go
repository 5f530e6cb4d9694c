package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Error variables for parser errors
var (
	// ErrJSONPathNotFound is returned when the JSON path does not exist in the document
	ErrJSONPathNotFound = errors.New("JSON path not found in response")
	// ErrRegexNoMatch is returned when the regex pattern does not match the content
	ErrRegexNoMatch = errors.New("regex pattern did not match")
	// ErrNoVersionFound is returned when no version could be extracted from upstream
	ErrNoVersionFound = errors.New("could not extract version from upstream")
	// ErrInvalidJSONPath is returned when the JSON path syntax is invalid
	ErrInvalidJSONPath = errors.New("invalid JSON path syntax")
	// ErrInvalidRegexPattern is returned when the regex pattern is invalid
	ErrInvalidRegexPattern = errors.New("invalid regex pattern")
	// ErrNoCaptureGroup is returned when the regex pattern has no capture group
	ErrNoCaptureGroup = errors.New("regex pattern must contain at least one capture group")
)

// Parser defines the interface for version extraction from content.
// Implementations extract version strings from different content formats.
type Parser interface {
	// Parse extracts a version string from the given content.
	// Returns the extracted version or an error if extraction fails.
	Parse(content []byte) (string, error)
}

// JSONParser extracts version using a JSON path.
// The path supports dot notation and array indexing (e.g., "assets[0].name").
type JSONParser struct {
	// Path is the JSON path to the version field (e.g., "tag_name")
	Path string
}

// Parse extracts a version string from JSON content using the configured path.
// Supports nested objects, array indexing, and simple field access.
func (p *JSONParser) Parse(content []byte) (string, error) {
	if p.Path == "" {
		return "", ErrInvalidJSONPath
	}

	var data interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}

	result, err := navigateJSONPath(data, p.Path)
	if err != nil {
		return "", err
	}

	version, ok := toString(result)
	if !ok {
		return "", fmt.Errorf("%w: value at path is not a string", ErrJSONPathNotFound)
	}

	return version, nil
}

// navigateJSONPath navigates through JSON data following the given path.
// Supports dot notation (field.subfield) and array indexing (field[0]).
func navigateJSONPath(data interface{}, path string) (interface{}, error) {
	segments, err := parseJSONPath(path)
	if err != nil {
		return nil, err
	}

	current := data
	for _, seg := range segments {
		switch seg.segType {
		case segmentField:
			obj, ok := current.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: expected object at %q", ErrJSONPathNotFound, seg.value)
			}
			val, exists := obj[seg.value]
			if !exists {
				return nil, fmt.Errorf("%w: field %q not found", ErrJSONPathNotFound, seg.value)
			}
			current = val

		case segmentIndex:
			arr, ok := current.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: expected array at index %d", ErrJSONPathNotFound, seg.index)
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return nil, fmt.Errorf("%w: array index %d out of bounds (length %d)", ErrJSONPathNotFound, seg.index, len(arr))
			}
			current = arr[seg.index]
		}
	}

	return current, nil
}

// segmentType represents the type of path segment
type segmentType int

const (
	segmentField segmentType = iota
	segmentIndex
)

// pathSegment represents a single segment in a JSON path
type pathSegment struct {
	segType segmentType
	value   string // field name for segmentField
	index   int    // array index for segmentIndex
}

// parseJSONPath parses a JSON path string into segments.
// Examples: "tag_name", "assets[0].name", "data.releases[0].tag"
func parseJSONPath(path string) ([]pathSegment, error) {
	var segments []pathSegment
	remaining := path

	for remaining != "" {
		remaining = strings.TrimPrefix(remaining, ".")

		if remaining == "" {
			break
		}

		if remaining[0] == '[' {
			return nil, fmt.Errorf("%w: unexpected '[' at start", ErrInvalidJSONPath)
		}

		// Find field name (until dot, bracket, or end)
		fieldEnd := len(remaining)
		for i, c := range remaining {
			if c == '.' || c == '[' {
				fieldEnd = i
				break
			}
		}

		if fieldEnd > 0 {
			fieldName := remaining[:fieldEnd]
			segments = append(segments, pathSegment{segType: segmentField, value: fieldName})
			remaining = remaining[fieldEnd:]
		}

		// Check for array index
		for strings.HasPrefix(remaining, "[") {
			closeBracket := strings.Index(remaining, "]")
			if closeBracket == -1 {
				return nil, fmt.Errorf("%w: unclosed bracket", ErrInvalidJSONPath)
			}

			indexStr := remaining[1:closeBracket]
			index, err := strconv.Atoi(indexStr)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid array index %q", ErrInvalidJSONPath, indexStr)
			}
			if index < 0 {
				return nil, fmt.Errorf("%w: negative array index", ErrInvalidJSONPath)
			}

			segments = append(segments, pathSegment{segType: segmentIndex, index: index})
			remaining = remaining[closeBracket+1:]
		}
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidJSONPath)
	}

	return segments, nil
}

// toString converts an interface{} to a string if possible
func toString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		// JSON numbers are float64
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// RegexParser extracts version using a regular expression with capture group.
// The first capture group in the pattern is used as the version.
type RegexParser struct {
	// Pattern is the regex pattern with at least one capture group
	Pattern string
	// compiled is the compiled regex (cached after first use)
	compiled *regexp.Regexp
}

// Parse extracts a version string from content using the configured regex pattern.
// The first capture group match is returned as the version.
func (p *RegexParser) Parse(content []byte) (string, error) {
	if p.Pattern == "" {
		return "", ErrInvalidRegexPattern
	}

	if p.compiled == nil {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRegexPattern, err)
		}
		p.compiled = re
	}

	if p.compiled.NumSubexp() < 1 {
		return "", ErrNoCaptureGroup
	}

	matches := p.compiled.FindSubmatch(content)
	if matches == nil || len(matches) < 2 {
		return "", ErrRegexNoMatch
	}

	version := string(matches[1])
	if version == "" {
		return "", fmt.Errorf("%w: capture group matched empty string", ErrRegexNoMatch)
	}

	return version, nil
}

// NewParser creates a parser from a source configuration.
// The source's Parser field selects "json", "regex", or "html".
func NewParser(src *Source) (Parser, error) {
	switch src.Parser {
	case "json":
		return &JSONParser{Path: src.Path}, nil
	case "regex":
		re, err := regexp.Compile(src.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegexPattern, err)
		}
		if re.NumSubexp() < 1 {
			return nil, ErrNoCaptureGroup
		}
		return &RegexParser{Pattern: src.Pattern, compiled: re}, nil
	case "html":
		return NewHTMLParser(src.Selector, src.XPath, src.Pattern)
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidParserType, src.Parser)
	}
}
