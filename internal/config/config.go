package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultPageSize           = 10
	DefaultDebounce           = 300 * time.Millisecond
	DefaultHTTPTimeout        = 10 * time.Second
	DefaultRequestsPerSecond  = 2.0
	DefaultMemoryCacheEntries = 256
	DefaultLibraryFile        = "library.json"
	DefaultCoversDir          = "BookCovers"
	DefaultProvider           = "googlebooks"

	preferencesFile = "preferences.db"
)

type Config struct {
	DataDir            string   `toml:"data_dir"`
	Provider           string   `toml:"provider"`
	APIKey             string   `toml:"api_key"`
	APIBaseURL         string   `toml:"api_base_url"`
	PageSize           int      `toml:"page_size"`
	Debounce           Duration `toml:"debounce"`
	HTTPTimeout        Duration `toml:"http_timeout"`
	RequestsPerSecond  float64  `toml:"requests_per_second"`
	MemoryCacheEntries int      `toml:"memory_cache_entries"`
	LibraryFile        string   `toml:"library_file"`
	CoversDir          string   `toml:"covers_dir"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("getting default data directory: %w", err)
	}
	return &Config{
		DataDir:            dataDir,
		Provider:           DefaultProvider,
		PageSize:           DefaultPageSize,
		Debounce:           Duration{DefaultDebounce},
		HTTPTimeout:        Duration{DefaultHTTPTimeout},
		RequestsPerSecond:  DefaultRequestsPerSecond,
		MemoryCacheEntries: DefaultMemoryCacheEntries,
		LibraryFile:        DefaultLibraryFile,
		CoversDir:          DefaultCoversDir,
		LogLevel:           "info",
		LogFormat:          "text",
	}, nil
}

// LoadConfig reads the file at configPath over the defaults, then applies
// environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config, err := GetDefaultConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	config.DataDir = getEnv("QUOTEBOOK_DATA_DIR", config.DataDir)
	config.APIKey = getEnv("QUOTEBOOK_API_KEY", config.APIKey)
	config.LogLevel = getEnv("QUOTEBOOK_LOG_LEVEL", config.LogLevel)

	config.Validate()
	return config, nil
}

// Validate replaces out-of-range values with usable ones
func (c *Config) Validate() {
	if c.PageSize < 1 {
		c.PageSize = DefaultPageSize
	}
	if c.Debounce.Duration < 0 {
		c.Debounce.Duration = 0
	}
	if c.HTTPTimeout.Duration <= 0 {
		c.HTTPTimeout.Duration = DefaultHTTPTimeout
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}
	if c.MemoryCacheEntries < 1 {
		c.MemoryCacheEntries = DefaultMemoryCacheEntries
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.LibraryFile == "" {
		c.LibraryFile = DefaultLibraryFile
	}
	if c.CoversDir == "" {
		c.CoversDir = DefaultCoversDir
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
}

// LibraryPath is the location of the library document
func (c *Config) LibraryPath() string {
	return c.resolve(c.LibraryFile)
}

// CoversPath is the image cache directory
func (c *Config) CoversPath() string {
	return c.resolve(c.CoversDir)
}

// PreferencesPath is the SQLite preferences database
func (c *Config) PreferencesPath() string {
	return filepath.Join(c.DataDir, preferencesFile)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample config with this config's data dir
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/quotebook", c.DataDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/quotebook/config.toml
func GetDefaultConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "quotebook", "config.toml"), nil
}

// GetDefaultDataDir returns the default directory for the library and caches
func GetDefaultDataDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "quotebook"), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
