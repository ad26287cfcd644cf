package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/jsonc"

	"jfx/internal/release"
	"jfx/internal/repository"
)

// Unlimited disables a cache bound
const Unlimited = -1

// Config holds the application configuration
type Config struct {
	StoreDir          string         `json:"store_dir,omitempty"`      // Overrides the Recaf dependencies directory
	IndexURL          string         `json:"index_url,omitempty"`      // maven-metadata.xml listing JavaFX releases
	RepositoryURL     string         `json:"repository_url,omitempty"` // Maven repository root for artifacts
	Compatibility     []release.Rule `json:"compatibility,omitempty"`  // Replaces the built-in runtime table
	MaxCacheCount     int            `json:"max_cache_count"`          // Entries kept before eviction, -1 for no limit
	MaxCacheSize      Size           `json:"max_cache_size"`           // Bytes kept before eviction, e.g. "2GB"
	KeepLatest        bool           `json:"keep_latest"`              // Spare the newest complete release when evicting
	Concurrency       int            `json:"concurrency,omitempty"`    // Artifacts downloaded in parallel
	RequestsPerSecond float64        `json:"requests_per_second,omitempty"`
	Timeouts          Timeouts       `json:"timeouts"`
	CustomPaths       []string       `json:"custom_paths"` // Specific Java installation paths
	SearchPaths       []string       `json:"search_paths"` // Base directories to scan for Java installations
	UpdateConfig      UpdateConfig   `json:"update_config"`
	configPath        string
}

// UpdateConfig holds settings for the self-update command
type UpdateConfig struct {
	Repository  string    `json:"repository,omitempty"` // GitHub "owner/name" publishing jfx releases
	Enabled     bool      `json:"enabled"`
	AutoCheck   bool      `json:"auto_check"`
	LastCheck   time.Time `json:"last_check"`
	SkipVersion string    `json:"skip_version"`
}

// Timeouts are per-request limits written as Go durations ("15s", "5m")
type Timeouts struct {
	Index  Duration `json:"index,omitempty"`
	Digest Duration `json:"digest,omitempty"`
	Binary Duration `json:"binary,omitempty"`
}

// Repository converts the timeouts for the repository client.
// Zero fields keep the client defaults.
func (t Timeouts) Repository() repository.Timeouts {
	return repository.Timeouts{
		Index:  time.Duration(t.Index),
		Digest: time.Duration(t.Digest),
		Binary: time.Duration(t.Binary),
	}
}

// Duration is a time.Duration encoded as a string
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"30s\": %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// Size is a byte count. It is read from either a number or a humanized
// string ("500MB", "2 GiB"); "unlimited" or a negative number disables it.
type Size int64

// ParseSize parses the same forms accepted in the config file
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "unlimited", "none", "-1":
		return Unlimited, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return Size(n), nil
}

func (s Size) String() string {
	if s < 0 {
		return "unlimited"
	}
	return humanize.Bytes(uint64(s))
}

func (s Size) MarshalJSON() ([]byte, error) {
	if s < 0 {
		return json.Marshal("unlimited")
	}
	// only write the humanized form when it reads back exactly
	if n, err := humanize.ParseBytes(s.String()); err == nil && Size(n) == s {
		return json.Marshal(s.String())
	}
	return json.Marshal(int64(s))
}

func (s *Size) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			n = Unlimited
		}
		*s = Size(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("size must be a number or a string: %w", err)
	}
	v, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		MaxCacheCount: Unlimited,
		MaxCacheSize:  Unlimited,
		Concurrency:   1,
		CustomPaths:   make([]string, 0),
		SearchPaths:   make([]string, 0),
		UpdateConfig: UpdateConfig{
			Enabled:   true,
			AutoCheck: true,
		},
	}
}

// Load loads the configuration from the user's config directory
func Load() (*Config, error) {
	return LoadFile(DefaultPath())
}

// LoadFile loads the configuration at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Remove BOM if present (UTF-8 BOM is EF BB BF)
	// This handles files created by PowerShell with Set-Content -Encoding UTF8
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.CustomPaths = cleanPaths(cfg.CustomPaths)
	cfg.SearchPaths = cleanPaths(cfg.SearchPaths)
	cfg.configPath = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %g", c.RequestsPerSecond)
	}
	if c.MaxCacheCount < Unlimited {
		c.MaxCacheCount = Unlimited
	}
	if len(c.Compatibility) > 0 {
		if _, err := release.NewTable(c.Compatibility); err != nil {
			return err
		}
	}
	return nil
}

// Table returns the compatibility table, falling back to the built-in rules
func (c *Config) Table() (*release.Table, error) {
	if len(c.Compatibility) == 0 {
		return release.DefaultTable(), nil
	}
	return release.NewTable(c.Compatibility)
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.configPath
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config has no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configPath, data, 0644)
}

// AddCustomPath adds a custom Java installation path.
// It reports false when the path is empty or already present.
func (c *Config) AddCustomPath(path string) bool {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." || c.HasCustomPath(path) {
		return false
	}
	c.CustomPaths = append(c.CustomPaths, path)
	return true
}

// RemoveCustomPath removes a custom Java installation path
func (c *Config) RemoveCustomPath(path string) bool {
	path = filepath.Clean(strings.TrimSpace(path))
	for i, p := range c.CustomPaths {
		if strings.EqualFold(p, path) {
			c.CustomPaths = append(c.CustomPaths[:i], c.CustomPaths[i+1:]...)
			return true
		}
	}
	return false
}

// HasCustomPath checks if a path exists in custom paths
func (c *Config) HasCustomPath(path string) bool {
	path = filepath.Clean(strings.TrimSpace(path))
	for _, p := range c.CustomPaths {
		if strings.EqualFold(p, path) {
			return true
		}
	}
	return false
}

// AddSearchPath adds a directory scanned for Java installations
func (c *Config) AddSearchPath(path string) bool {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return false
	}
	for _, p := range c.SearchPaths {
		if strings.EqualFold(p, path) {
			return false
		}
	}
	c.SearchPaths = append(c.SearchPaths, path)
	return true
}

// cleanPaths trims, cleans and case-insensitively dedupes paths
func cleanPaths(paths []string) []string {
	cleaned := make([]string, 0, len(paths))
	seen := make(map[string]bool)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, p)
	}
	return cleaned
}

// DefaultPath returns the path to the config file
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jfx", "jfx.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "jfx.json")
	}
	return filepath.Join(home, ".config", "jfx", "jfx.json")
}
