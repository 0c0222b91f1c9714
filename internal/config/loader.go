package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the project-level config path relative to the root
	ProjectConfigFile = ".moss/config.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/moss"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger   *slog.Logger
	userPath string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, userPath: defaultUserConfigPath()}
}

// WithUserConfigPath overrides the user config location. An empty path
// disables the user layer.
func (l *Loader) WithUserConfigPath(path string) *Loader {
	l.userPath = path
	return l
}

// Load loads configuration for the project at root with layered precedence:
// 1. Default config
// 2. User config (~/.config/moss/config.yaml)
// 3. Project config (<root>/.moss/config.yaml)
//
// A malformed user config is logged and skipped; a malformed project config
// is an error.
func (l *Loader) Load(root string) (*Config, error) {
	config := DefaultConfig()

	if l.userPath != "" {
		if userConfig, err := LoadFromFile(l.userPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", l.userPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", l.userPath), slog.String("error", err.Error()))
		}
	}

	projectPath := filepath.Join(root, filepath.FromSlash(ProjectConfigFile))
	projectConfig, err := LoadFromFile(projectPath)
	switch {
	case err == nil:
		l.logger.Debug("Loaded project config", slog.String("path", projectPath))
		config.Merge(projectConfig)
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Debug("No project config found", slog.String("path", projectPath))
	default:
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaultUserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}
