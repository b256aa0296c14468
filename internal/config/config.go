package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every nbweave setting.
type Config struct {
	// PreferredLanguage is assumed for notebooks that do not declare one.
	PreferredLanguage string `toml:"preferred_language"`

	// CompletionTimeoutMS bounds how long a completion request waits for
	// the kernel before returning static results only.
	CompletionTimeoutMS int `toml:"completion_timeout_ms"`

	// StringPathFilter keeps only path-like completions when the cursor
	// sits inside a string literal.
	StringPathFilter bool `toml:"string_path_filter"`

	// PreferredKernelCap bounds the preferred-kernel store; the least
	// recently recorded documents are evicted past it.
	PreferredKernelCap int `toml:"preferred_kernel_cap"`

	// KernelSpecPaths lists extra kernelspec directories scanned in
	// addition to the standard Jupyter data directories.
	KernelSpecPaths []string `toml:"kernelspec_paths"`

	// DataDir holds nbweave state such as the preferred-kernel database.
	DataDir string `toml:"data_dir"`

	// DefaultIndent is used when serializing a notebook whose original
	// indentation is unknown.
	DefaultIndent string `toml:"default_indent"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		PreferredLanguage:   "python",
		CompletionTimeoutMS: 1000,
		StringPathFilter:    true,
		PreferredKernelCap:  100,
		DataDir:             DefaultDataDir(),
		DefaultIndent:       " ",
		LogLevel:            "info",
	}
}

// DefaultDataDir returns the per-user state directory.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".nbweave"
	}
	return filepath.Join(base, "nbweave")
}

// DefaultPath returns the configuration file location Load falls back to.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load reads the TOML file at path, layering its values over Default.
// An empty path means DefaultPath. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, &ParseError{Path: path, Message: "reading file", Err: err}
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if c.PreferredLanguage == "" {
		return &ValidationError{Field: "preferred_language", Message: "must not be empty", Value: c.PreferredLanguage}
	}
	if c.CompletionTimeoutMS <= 0 {
		return &ValidationError{Field: "completion_timeout_ms", Message: "must be positive", Value: c.CompletionTimeoutMS}
	}
	if c.PreferredKernelCap <= 0 {
		return &ValidationError{Field: "preferred_kernel_cap", Message: "must be positive", Value: c.PreferredKernelCap}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log_level", Message: "must be debug, info, warn, or error", Value: c.LogLevel}
	}
	for _, r := range c.DefaultIndent {
		if r != ' ' && r != '\t' {
			return &ValidationError{Field: "default_indent", Message: "must contain only spaces and tabs", Value: c.DefaultIndent}
		}
	}
	return nil
}

// CompletionTimeout returns the kernel completion deadline as a duration.
func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutMS) * time.Millisecond
}

// StorePath returns the preferred-kernel database location.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "kernels.db")
}
