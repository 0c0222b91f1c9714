// Package config provides layered YAML configuration for moss.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jward/moss/internal/sandbox"
)

// Config represents the complete moss configuration
type Config struct {
	Shadow  ShadowConfig  `yaml:"shadow"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// ShadowConfig configures the snapshot store
type ShadowConfig struct {
	// AuthorName and AuthorEmail sign snapshot commits
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	// ContextLines is the unified-diff context around each hunk (default: 3)
	ContextLines *int `yaml:"context_lines,omitempty"`
	// AnnotateSymbols labels hunks with their enclosing declaration
	AnnotateSymbols *bool `yaml:"annotate_symbols,omitempty"`
}

// SandboxConfig configures the edit sandbox
type SandboxConfig struct {
	// Shell runs validation commands as "<shell> -c <command>" (default: sh)
	Shell string `yaml:"shell"`
	// Checks are run by "moss sandbox check"
	Checks []sandbox.Check `yaml:"checks"`
}

// JournalConfig configures the operation journal
type JournalConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: warn)
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Shadow: ShadowConfig{
			AuthorName:      "moss",
			AuthorEmail:     "moss@localhost",
			ContextLines:    intPtr(3),
			AnnotateSymbols: boolPtr(true),
		},
		Sandbox: SandboxConfig{
			Shell: "sh",
		},
		Journal: JournalConfig{
			Enabled: boolPtr(true),
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Shadow.ContextLines != nil && *c.Shadow.ContextLines < 0 {
		return fmt.Errorf("shadow.context_lines must not be negative")
	}
	if c.Sandbox.Shell == "" {
		return fmt.Errorf("sandbox.shell is required")
	}
	for i, check := range c.Sandbox.Checks {
		if strings.TrimSpace(check.Command) == "" {
			return fmt.Errorf("sandbox.checks[%d] (%s): command is required", i, check.Name)
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ContextLinesOrDefault returns the configured context, or 3.
func (c *Config) ContextLinesOrDefault() int {
	if c.Shadow.ContextLines == nil {
		return 3
	}
	return *c.Shadow.ContextLines
}

// AnnotateSymbolsEnabled reports whether hunks get symbol annotations.
func (c *Config) AnnotateSymbolsEnabled() bool {
	return c.Shadow.AnnotateSymbols == nil || *c.Shadow.AnnotateSymbols
}

// JournalEnabled reports whether operations are journaled.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// ParseLevel maps a level name to its slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q must be one of debug, info, warn, error", level)
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// values it sets)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Shadow
	if other.Shadow.AuthorName != "" {
		c.Shadow.AuthorName = other.Shadow.AuthorName
	}
	if other.Shadow.AuthorEmail != "" {
		c.Shadow.AuthorEmail = other.Shadow.AuthorEmail
	}
	if other.Shadow.ContextLines != nil {
		c.Shadow.ContextLines = other.Shadow.ContextLines
	}
	if other.Shadow.AnnotateSymbols != nil {
		c.Shadow.AnnotateSymbols = other.Shadow.AnnotateSymbols
	}

	// Sandbox
	if other.Sandbox.Shell != "" {
		c.Sandbox.Shell = other.Sandbox.Shell
	}
	if len(other.Sandbox.Checks) > 0 {
		c.Sandbox.Checks = other.Sandbox.Checks
	}

	// Journal
	if other.Journal.Enabled != nil {
		c.Journal.Enabled = other.Journal.Enabled
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
