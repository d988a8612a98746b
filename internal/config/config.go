package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/dwell/config.yaml"

// Config holds all dwell configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Capture    CaptureConfig    `yaml:"capture"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Transport  TransportConfig  `yaml:"transport"`
	Retention  RetentionConfig  `yaml:"retention"`
	Export     ExportConfig     `yaml:"export"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exclusions ExclusionsConfig `yaml:"exclusions"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type CaptureConfig struct {
	FlushIntervalSeconds   int `yaml:"flush_interval_seconds"`
	MinIntervalSeconds     int `yaml:"min_interval_seconds"`
	MaxOpenIntervalSeconds int `yaml:"max_open_interval_seconds"`
}

type SamplerConfig struct {
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
	BrowserBundleIDs    []string `yaml:"browser_bundle_ids"`
	// SampleCommand is the helper invoked to observe the foreground window.
	// It must print one line: app name, bundle id, and window title,
	// tab-separated. Empty disables window sampling.
	SampleCommand []string `yaml:"sample_command"`
}

type TransportConfig struct {
	DialRetrySeconds     int `yaml:"dial_retry_seconds"`
	ReconnectWaitSeconds int `yaml:"reconnect_wait_seconds"`
}

type RetentionConfig struct {
	Days int `yaml:"days"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type ExclusionsConfig struct {
	InternalSchemes []string `yaml:"internal_schemes"`
	DenylistDomains []string `yaml:"denylist_domains"`
	DenylistRegex   []string `yaml:"denylist_regex"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Internal schemes are never capturable regardless of config file.
	cfg.Exclusions.InternalSchemes = mergeSchemes(cfg.Exclusions.InternalSchemes)

	return cfg, nil
}

// mergeSchemes guarantees the built-in internal schemes are always present.
func mergeSchemes(schemes []string) []string {
	present := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		present[s] = true
	}
	for _, s := range InternalSchemes() {
		if !present[s] {
			schemes = append(schemes, s)
		}
	}
	return schemes
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// DatabasePath resolves the full path to the SQLite database file.
func (c *Config) DatabasePath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExportDir resolves the directory exports are written to.
func (c *Config) ExportDir() (string, error) {
	return expandPath(c.Export.Dir)
}

// LogPath resolves the full path to the log file.
func (c *Config) LogPath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Logging.File), nil
}
