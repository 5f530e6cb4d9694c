package probe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/moderncpp/versync/internal/snapshot"
)

// Error variables for source configuration errors
var (
	// ErrInvalidParserType is returned when an invalid parser type is specified
	ErrInvalidParserType = errors.New("invalid parser type: must be 'json', 'regex', or 'html'")
	// ErrMissingURL is returned when a source is missing the required URL field
	ErrMissingURL = errors.New("missing required field: url")
	// ErrMissingParser is returned when a source is missing the required parser field
	ErrMissingParser = errors.New("missing required field: parser")
	// ErrMissingPath is returned when a JSON parser is missing the required path field
	ErrMissingPath = errors.New("missing required field: path (required for json parser)")
	// ErrMissingPattern is returned when a regex parser is missing the required pattern field
	ErrMissingPattern = errors.New("missing required field: pattern (required for regex parser)")
	// ErrUnknownComponent is returned when the config names a component that is not tracked
	ErrUnknownComponent = errors.New("unknown component in sources config")
)

// Source describes how to determine the latest upstream version of one
// tracked component.
type Source struct {
	// URL is the primary URL to query for version information
	URL string `toml:"url"`
	// Parser specifies the parser type: "json", "regex", or "html"
	Parser string `toml:"parser"`
	// Path is the JSON path for extracting version (used with json parser)
	Path string `toml:"path,omitempty"`
	// Pattern is the regex pattern with capture group (used with regex parser,
	// or as post-processing for the html parser)
	Pattern string `toml:"pattern,omitempty"`
	// Selector is the CSS selector (used with html parser)
	Selector string `toml:"selector,omitempty"`
	// XPath is the XPath expression (alternative to Selector for html parser)
	XPath string `toml:"xpath,omitempty"`
	// StripPrefix is removed from the front of the extracted value (e.g. "v")
	StripPrefix string `toml:"strip_prefix,omitempty"`
	// Headers are extra request headers; values support ${VAR} substitution
	Headers map[string]string `toml:"headers,omitempty"`
	// FallbackURL is an alternative URL to try if primary fails
	FallbackURL string `toml:"fallback_url,omitempty"`
	// FallbackParser is the parser type for the fallback URL
	FallbackParser string `toml:"fallback_parser,omitempty"`
	// FallbackPattern is the pattern for the fallback parser
	FallbackPattern string `toml:"fallback_pattern,omitempty"`
}

// SourcesConfig maps each tracked component to its probe source.
type SourcesConfig struct {
	Components map[string]Source `toml:"components"`
}

// DefaultSources returns the built-in probe sources for the tracked components.
func DefaultSources() *SourcesConfig {
	return &SourcesConfig{
		Components: map[string]Source{
			snapshot.ComponentCMake: {
				URL:         "https://api.github.com/repos/Kitware/CMake/releases/latest",
				Parser:      "json",
				Path:        "tag_name",
				StripPrefix: "v",
			},
			snapshot.ComponentGCC: {
				URL:      "https://gcc.gnu.org/releases.html",
				Parser:   "html",
				Selector: "body",
				// The releases page only ever lists MAJOR.MINOR
				Pattern: `GCC\s+(\d+\.\d+)`,
			},
			snapshot.ComponentClang: {
				URL:    "https://api.github.com/repos/llvm/llvm-project/releases",
				Parser: "regex",
				// First release tag in the listing is the most recent;
				// prerelease tags like llvmorg-22-init do not match
				Pattern: `"tag_name":\s*"llvmorg-(\d+(?:\.\d+)*)"`,
			},
		},
	}
}

// LoadSources loads probe sources for a repository.
// If <repo>/.versync/components.toml exists it fully replaces the defaults
// for the components it names; components it omits keep their defaults.
// Without a config file the built-in defaults are returned.
func LoadSources(repoPath string) (*SourcesConfig, error) {
	config := DefaultSources()

	configPath := filepath.Join(repoPath, ".versync", "components.toml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read components.toml: %w", err)
	}

	var fileConfig SourcesConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse components.toml: %w", err)
	}

	for name, src := range fileConfig.Components {
		if _, tracked := config.Components[name]; !tracked {
			return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
		}
		config.Components[name] = src
	}

	if err := config.ValidateAll(); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateSource validates a single component source.
// It checks for required fields and valid parser types.
func ValidateSource(component string, src *Source) error {
	if src.URL == "" {
		return fmt.Errorf("component %s: %w", component, ErrMissingURL)
	}
	if src.Parser == "" {
		return fmt.Errorf("component %s: %w", component, ErrMissingParser)
	}

	switch src.Parser {
	case "json":
		if src.Path == "" {
			return fmt.Errorf("component %s: %w", component, ErrMissingPath)
		}
	case "regex":
		if src.Pattern == "" {
			return fmt.Errorf("component %s: %w", component, ErrMissingPattern)
		}
	case "html":
		if src.Selector == "" && src.XPath == "" {
			return fmt.Errorf("component %s: %w", component, ErrNoSelectorOrXPath)
		}
	default:
		return fmt.Errorf("component %s: %w: got %q", component, ErrInvalidParserType, src.Parser)
	}

	// Validate fallback configuration if present
	if src.FallbackURL != "" && src.FallbackParser != "" {
		switch src.FallbackParser {
		case "json":
			// JSON fallback reuses Path from the primary config
		case "regex":
			if src.FallbackPattern == "" {
				return fmt.Errorf("component %s: fallback_pattern required for regex fallback parser", component)
			}
		default:
			return fmt.Errorf("component %s: invalid fallback_parser type: %q", component, src.FallbackParser)
		}
	}

	return nil
}

// ValidateAll validates every component source in the config.
// Returns the first validation error encountered, or nil if all are valid.
func (c *SourcesConfig) ValidateAll() error {
	for component, src := range c.Components {
		srcCopy := src // Create a copy to get a pointer
		if err := ValidateSource(component, &srcCopy); err != nil {
			return err
		}
	}
	return nil
}
