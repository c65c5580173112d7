package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HamStudy/gridwatch/configs"
)

// Config represents the main configuration structure
type Config struct {
	Version  string          `yaml:"version"`
	Viewport *ViewportConfig `yaml:"viewport"`
	Debounce *DebounceConfig `yaml:"debounce"`
	Lookup   *LookupConfig   `yaml:"lookup"`
}

// ViewportConfig sizes the virtualized table.
type ViewportConfig struct {
	RowHeight int `yaml:"rowHeight"`
	Overscan  int `yaml:"overscan"`
	CacheRows int `yaml:"cacheRows"`
}

// DebounceConfig holds the trailing-edge delays.
type DebounceConfig struct {
	Search time.Duration `yaml:"search"`
	Store  time.Duration `yaml:"store"`
}

// LookupConfig locates remote lookup tables and their static fallbacks.
type LookupConfig struct {
	Namespace    string                    `yaml:"namespace"`
	Prefix       string                    `yaml:"prefix"`
	CacheTTL     time.Duration             `yaml:"cacheTTL"`
	RefreshLimit time.Duration             `yaml:"refreshLimit"`
	Timeout      time.Duration             `yaml:"timeout"`
	Fallbacks    map[string][]FallbackItem `yaml:"fallbacks"`
}

// FallbackItem is one row of a static lookup list.
type FallbackItem struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// Loader handles configuration loading and management
type Loader struct {
	configDir string
	defaults  *Config
	user      *Config
	merged    *Config
	mu        sync.RWMutex
}

// NewLoader creates a new configuration loader. The built-in defaults are
// parsed eagerly; a broken embedded file is a build defect and panics.
func NewLoader(configDir string) *Loader {
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config", "gridwatch")
	}

	defaults, err := parseConfig(bytes.NewReader(configs.Defaults))
	if err != nil {
		panic(fmt.Sprintf("embedded defaults: %v", err))
	}

	return &Loader{
		configDir: configDir,
		defaults:  defaults,
	}
}

// Path returns the user configuration file path.
func (l *Loader) Path() string {
	return filepath.Join(l.configDir, "config.yaml")
}

// Load reads the user config, if any, and merges it over the defaults.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.Path()); err == nil {
		userConfig, err := l.loadConfigFile(l.Path())
		if err != nil {
			return fmt.Errorf("failed to load user config: %w", err)
		}
		l.user = userConfig
	}

	l.merged = mergeConfigs(l.defaults, l.user)
	return nil
}

// LoadString loads configuration from a string and merges it over defaults.
func (l *Loader) LoadString(content string) error {
	userConfig, err := parseConfig(strings.NewReader(content))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.user = userConfig
	l.merged = mergeConfigs(l.defaults, l.user)
	return nil
}

func (l *Loader) loadConfigFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseConfig(file)
}

// parseConfig decodes strictly and validates the result.
func parseConfig(r io.Reader) (*Config, error) {
	var config Config
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Version == "" {
		config.Version = "1.0.0"
	}

	if vp := config.Viewport; vp != nil {
		if vp.RowHeight < 0 {
			return fmt.Errorf("viewport.rowHeight must be positive, got %d", vp.RowHeight)
		}
		if vp.Overscan < 0 {
			vp.Overscan = 0
		}
	}

	if d := config.Debounce; d != nil {
		if d.Search < 0 || d.Store < 0 {
			return fmt.Errorf("debounce delays must not be negative")
		}
	}

	if lc := config.Lookup; lc != nil {
		for group, items := range lc.Fallbacks {
			for i, item := range items {
				if item.Code == "" {
					return fmt.Errorf("lookup.fallbacks.%s[%d]: code is required", group, i)
				}
			}
		}
	}

	return nil
}

// mergeConfigs overlays user settings on defaults. Zero values in the user
// file keep the default.
func mergeConfigs(defaults, user *Config) *Config {
	if user == nil {
		return defaults
	}
	if defaults == nil {
		return user
	}

	merged := *defaults
	if user.Version != "" {
		merged.Version = user.Version
	}

	if user.Viewport != nil {
		vp := ViewportConfig{}
		if defaults.Viewport != nil {
			vp = *defaults.Viewport
		}
		if user.Viewport.RowHeight > 0 {
			vp.RowHeight = user.Viewport.RowHeight
		}
		if user.Viewport.Overscan > 0 {
			vp.Overscan = user.Viewport.Overscan
		}
		if user.Viewport.CacheRows > 0 {
			vp.CacheRows = user.Viewport.CacheRows
		}
		merged.Viewport = &vp
	}

	if user.Debounce != nil {
		d := DebounceConfig{}
		if defaults.Debounce != nil {
			d = *defaults.Debounce
		}
		if user.Debounce.Search > 0 {
			d.Search = user.Debounce.Search
		}
		if user.Debounce.Store > 0 {
			d.Store = user.Debounce.Store
		}
		merged.Debounce = &d
	}

	if user.Lookup != nil {
		lc := LookupConfig{}
		if defaults.Lookup != nil {
			lc = *defaults.Lookup
		}
		if user.Lookup.Namespace != "" {
			lc.Namespace = user.Lookup.Namespace
		}
		if user.Lookup.Prefix != "" {
			lc.Prefix = user.Lookup.Prefix
		}
		if user.Lookup.CacheTTL > 0 {
			lc.CacheTTL = user.Lookup.CacheTTL
		}
		if user.Lookup.RefreshLimit > 0 {
			lc.RefreshLimit = user.Lookup.RefreshLimit
		}
		if user.Lookup.Timeout > 0 {
			lc.Timeout = user.Lookup.Timeout
		}

		// Merge fallbacks per group
		fallbacks := make(map[string][]FallbackItem, len(lc.Fallbacks)+len(user.Lookup.Fallbacks))
		for k, v := range lc.Fallbacks {
			fallbacks[k] = v
		}
		for k, v := range user.Lookup.Fallbacks {
			fallbacks[k] = v
		}
		lc.Fallbacks = fallbacks
		merged.Lookup = &lc
	}

	return &merged
}

// Get returns the current configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.merged != nil {
		return l.merged
	}
	return l.defaults
}

// Save writes the user overrides to disk.
func (l *Loader) Save() error {
	l.mu.RLock()
	config := l.user
	l.mu.RUnlock()

	if config == nil {
		return fmt.Errorf("no configuration to save")
	}

	if err := os.MkdirAll(l.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(l.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
