// Package config loads the daemon's YAML configuration file: server
// binding, logging, VFS debounce tuning, and the optional search
// enrichment. This is distinct from a project's *.project.json, which is
// loaded by the project package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	VFS     VFSConfig     `yaml:"vfs"`
	Search  SearchConfig  `yaml:"search"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string        `yaml:"level"`  // debug, info, warn, error
	Format string        `yaml:"format"` // json, text
	Output string        `yaml:"output"` // stdout, stderr, file
	File   LogFileConfig `yaml:"file"`
}

// LogFileConfig holds rotation settings when Output == "file".
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// VFSConfig tunes the filesystem watcher.
type VFSConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// SearchConfig controls the optional in-memory search enrichment.
type SearchConfig struct {
	Enabled      bool `yaml:"enabled"`
	DefaultLimit int  `yaml:"default_limit"`
	MaxLimit     int  `yaml:"max_limit"`
}

// LoadConfig loads configuration with fallback priority:
// 1. Provided configPath parameter
// 2. ROJO_CONFIG_PATH environment variable
// 3. ~/.config/rojo/config.yaml
// 4. ./rojo.yaml
// 5. Built-in defaults
func LoadConfig(configPath string) (*Config, error) {
	var cfg *Config
	var err error
	var loadedFrom string

	switch {
	case configPath != "":
		cfg, err = loadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		loadedFrom = configPath
	case os.Getenv("ROJO_CONFIG_PATH") != "":
		envPath := os.Getenv("ROJO_CONFIG_PATH")
		cfg, err = loadFromFile(envPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from env path %s: %w", envPath, err)
		}
		loadedFrom = envPath
	default:
		homeDir, _ := os.UserHomeDir()
		searchPaths := []string{
			filepath.Join(homeDir, ".config", "rojo", "config.yaml"),
			"./rojo.yaml",
		}
		for _, path := range searchPaths {
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = loadFromFile(path)
				if err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				loadedFrom = path
				break
			}
		}
		if cfg == nil {
			cfg = DefaultConfig()
			loadedFrom = "built-in defaults"
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (loaded from %s): %w", loadedFrom, err)
	}

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides allows environment variables to override config file values.
func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("ROJO_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("ROJO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if timeout := os.Getenv("ROJO_SERVER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Server.ReadTimeout = d
		}
	}
	if timeout := os.Getenv("ROJO_SERVER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Server.WriteTimeout = d
		}
	}
	if level := os.Getenv("ROJO_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("ROJO_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if output := os.Getenv("ROJO_LOG_OUTPUT"); output != "" {
		c.Logging.Output = output
	}
	if debounce := os.Getenv("ROJO_VFS_DEBOUNCE_MS"); debounce != "" {
		if d, err := strconv.Atoi(debounce); err == nil {
			c.VFS.DebounceMS = d
		}
	}
	if limit := os.Getenv("ROJO_SEARCH_DEFAULT_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			c.Search.DefaultLimit = l
		}
	}
	if limit := os.Getenv("ROJO_SEARCH_MAX_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			c.Search.MaxLimit = l
		}
	}
	if enabled := os.Getenv("ROJO_SEARCH_ENABLED"); enabled != "" {
		c.Search.Enabled = enabled == "true" || enabled == "1"
	}
}

// DefaultConfig returns a configuration with sensible defaults. 34872 is the
// default Rojo session port.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         34872,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		VFS: VFSConfig{
			DebounceMS: 300,
		},
		Search: SearchConfig{
			Enabled:      true,
			DefaultLimit: 20,
			MaxLimit:     100,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout cannot be negative")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout cannot be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %s", c.Logging.Level)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text; got %s", c.Logging.Format)
	}
	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[c.Logging.Output] {
		return fmt.Errorf("logging.output must be one of: stdout, stderr, file; got %s", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		return fmt.Errorf("logging.file.path is required when logging.output is 'file'")
	}

	if c.VFS.DebounceMS < 0 {
		return fmt.Errorf("vfs.debounce_ms cannot be negative")
	}

	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= search.default_limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	return nil
}

// LoggerConfig adapts this daemon config's logging section into the shape
// the logger package expects.
func (c *Config) LoggerConfig() (level, format, output string, file LogFileConfig) {
	return c.Logging.Level, c.Logging.Format, c.Logging.Output, c.Logging.File
}
