package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	ErrRepoPathNotSet   = errors.New("repository path is not configured")
	ErrRepoPathNotFound = errors.New("repository path does not exist")
)

// Config represents the application configuration
type Config struct {
	Repo   RepoConfig   `yaml:"repo"`
	GitHub GitHubConfig `yaml:"github"`
	HTTP   HTTPConfig   `yaml:"http,omitempty"`
}

// RepoConfig holds settings for the repository whose artifacts are rewritten
type RepoConfig struct {
	// Path is the root of the demo repository (supports ~ expansion)
	Path string `yaml:"path"`
	// SnapshotPath overrides the default snapshot location (.versync/versions.env)
	SnapshotPath string `yaml:"snapshot_path,omitempty"`
}

// GitHubConfig holds GitHub API settings
type GitHubConfig struct {
	Token string `yaml:"token"` // Personal access token for higher rate limits
}

// HTTPConfig holds HTTP client settings
type HTTPConfig struct {
	// TimeoutSeconds is the per-request timeout (default: 30)
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	// MaxRetries is the number of retry attempts on 5xx/429 (default: 3)
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// ConfigPaths returns all possible config file paths in priority order
// 1. ~/.config/versync/config.yaml (XDG standard - priority)
// 2. ~/.versync/config.yaml (legacy fallback)
func ConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	// Check XDG_CONFIG_HOME first, fallback to ~/.config
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "versync", "config.yaml"),
		filepath.Join(home, ".versync", "config.yaml"),
	}, nil
}

// DefaultConfigPath returns the default config file path (XDG standard)
func DefaultConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// FindConfigPath returns the first existing config file path
// Returns the default path if no config file exists yet
func FindConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}

	// Return first existing config file
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// No config exists, return default (XDG) path for creation
	return paths[0], nil
}

// Load reads configuration from the first available config file
// Priority: ~/.config/versync/config.yaml > ~/.versync/config.yaml
func Load() (*Config, error) {
	configPath, err := FindConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from a specific file path.
// A missing file yields an empty default configuration; the repository
// path can still be supplied on the command line.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes configuration to the default config file
func (c *Config) Save() error {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes configuration to a specific file path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetRepoPath returns the validated repository path.
// The path must be set and must exist as a directory.
func (c *Config) GetRepoPath() (string, error) {
	if c.Repo.Path == "" {
		return "", ErrRepoPathNotSet
	}

	// Expand home directory if needed
	path := c.Repo.Path
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrRepoPathNotFound
		}
		return "", err
	}

	if !info.IsDir() {
		return "", ErrRepoPathNotFound
	}

	return path, nil
}

// GetSnapshotPath returns the snapshot file location for the given repository
// root, honoring the snapshot_path override.
func (c *Config) GetSnapshotPath(repoPath string) string {
	if c.Repo.SnapshotPath != "" {
		p := c.Repo.SnapshotPath
		if !filepath.IsAbs(p) {
			p = filepath.Join(repoPath, p)
		}
		return p
	}
	return filepath.Join(repoPath, ".versync", "versions.env")
}

// GetGitHubToken returns the configured token, falling back to the
// GITHUB_TOKEN environment variable.
func (c *Config) GetGitHubToken() string {
	if c.GitHub.Token != "" {
		return c.GitHub.Token
	}
	return os.Getenv("GITHUB_TOKEN")
}
