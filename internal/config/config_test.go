package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moss/internal/sandbox"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "moss", cfg.Shadow.AuthorName)
	assert.Equal(t, 3, cfg.ContextLinesOrDefault())
	assert.True(t, cfg.AnnotateSymbolsEnabled())
	assert.True(t, cfg.JournalEnabled())
	assert.Equal(t, "sh", cfg.Sandbox.Shell)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative context", func(c *Config) { c.Shadow.ContextLines = intPtr(-1) }, "context_lines"},
		{"empty shell", func(c *Config) { c.Sandbox.Shell = "" }, "sandbox.shell"},
		{"check without command", func(c *Config) {
			c.Sandbox.Checks = []sandbox.Check{{Name: "lint"}}
		}, "sandbox.checks[0] (lint)"},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}

func TestMerge_OtherTakesPrecedence(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Merge(&Config{
		Shadow:  ShadowConfig{AuthorName: "alice", ContextLines: intPtr(0), AnnotateSymbols: boolPtr(false)},
		Sandbox: SandboxConfig{Checks: []sandbox.Check{{Name: "t", Command: "true"}}},
		Journal: JournalConfig{Enabled: boolPtr(false)},
	})

	assert.Equal(t, "alice", cfg.Shadow.AuthorName)
	assert.Equal(t, "moss@localhost", cfg.Shadow.AuthorEmail, "unset values keep defaults")
	assert.Equal(t, 0, cfg.ContextLinesOrDefault())
	assert.False(t, cfg.AnnotateSymbolsEnabled())
	assert.False(t, cfg.JournalEnabled())
	assert.Equal(t, "sh", cfg.Sandbox.Shell)
	require.Len(t, cfg.Sandbox.Checks, 1)

	cfg.Merge(nil)
	assert.Equal(t, "alice", cfg.Shadow.AuthorName)
}

func TestSaveAndLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Sandbox.Checks = []sandbox.Check{{Name: "vet", Command: "go vet ./...", Triggers: []string{"**/*.go"}, Required: true}}
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFile_Malformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shadow: [unclosed"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_LayeredPrecedence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user", "config.yaml")
	root := filepath.Join(dir, "project")

	writeYAML(t, userPath, "shadow:\n  author_name: user\n  author_email: user@example.com\nlog:\n  level: info\n")
	writeYAML(t, filepath.Join(root, ".moss", "config.yaml"), "shadow:\n  author_name: project\n  context_lines: 1\n")

	cfg, err := NewLoader(nil).WithUserConfigPath(userPath).Load(root)
	require.NoError(t, err)
	assert.Equal(t, "project", cfg.Shadow.AuthorName)
	assert.Equal(t, "user@example.com", cfg.Shadow.AuthorEmail)
	assert.Equal(t, 1, cfg.ContextLinesOrDefault())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_NoFilesGivesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := NewLoader(nil).WithUserConfigPath("").Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_BadUserConfigSkipped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	userPath := filepath.Join(dir, "config.yaml")
	writeYAML(t, userPath, "::: not yaml")

	cfg, err := NewLoader(nil).WithUserConfigPath(userPath).Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "moss", cfg.Shadow.AuthorName)
}

func TestLoader_BadProjectConfigFails(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeYAML(t, filepath.Join(root, ".moss", "config.yaml"), "log:\n  level: loud\n")

	_, err := NewLoader(nil).WithUserConfigPath("").Load(root)
	require.Error(t, err)
}
