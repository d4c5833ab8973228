package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

var log = logging.New("config")

const (
	configDirName  = ".cli-notation"
	configFileName = "config.json"

	StoreFile   = "file"
	StoreSQLite = "sqlite"

	DefaultHistoryLimit  = 50
	DefaultAutosaveDelay = 5 * time.Second
	DefaultIDTimeout     = 250 * time.Millisecond
	DefaultHTTPAddr      = "127.0.0.1:7410"
	databaseFileName     = "notation.db"
)

var ErrNotConfigured = errors.New("cli-notation is not configured")

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config stores user-defined settings of the notation editor.
type Config struct {
	DataDir       string                          `json:"data_dir"`
	Store         string                          `json:"store"`
	HistoryLimit  int                             `json:"history_limit"`
	AutosaveDelay Duration                        `json:"autosave_delay"`
	HTTPAddr      string                          `json:"http_addr"`
	CatalogFile   string                          `json:"catalog_file,omitempty"`
	IDTimeout     Duration                        `json:"id_timeout"`
	DefaultMode   score.Mode                      `json:"default_mode"`
	Layouts       map[score.Mode]placement.Layout `json:"layouts,omitempty"`
	Defaults      score.Meta                      `json:"defaults"`
	// Keybindings overrides terminal editor keys, action name to key.
	Keybindings map[string]string `json:"keybindings,omitempty"`
	// LastProject is reopened by the editor when no project is named.
	LastProject string `json:"last_project,omitempty"`
}

// Default returns a configuration rooted at dataDir with every other field
// at its default.
func Default(dataDir string) Config {
	cfg := Config{DataDir: dataDir}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = StoreFile
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.AutosaveDelay == 0 {
		c.AutosaveDelay = Duration(DefaultAutosaveDelay)
	}
	if c.IDTimeout <= 0 {
		c.IDTimeout = Duration(DefaultIDTimeout)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.DefaultMode == "" {
		c.DefaultMode = score.ModeGeneral
	}
	if c.Defaults == (score.Meta{}) {
		c.Defaults = score.DefaultMeta
	}
}

// Validate checks the fields that have no sensible default.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("invalid store %q: want %q or %q", c.Store, StoreFile, StoreSQLite)
	}
	if _, err := score.ParseMode(string(c.DefaultMode)); err != nil {
		return fmt.Errorf("invalid default_mode: %w", err)
	}
	for mode, layout := range c.Layouts {
		if !layout.Valid() {
			return fmt.Errorf("invalid layout for mode %q", mode)
		}
	}
	return nil
}

// LayoutFor returns the configured layout override of a mode, or its stock
// layout.
func (c Config) LayoutFor(mode score.Mode) placement.Layout {
	if layout, ok := c.Layouts[mode]; ok && layout.Valid() {
		return layout
	}
	return placement.LayoutFor(mode)
}

// DatabasePath is where the sqlite store keeps its database.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, databaseFileName)
}

// ExportDir is where exported documents are written.
func (c Config) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// DefaultDataDir returns the default data directory used by init.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName, "data"), nil
}

// ConfigPath returns the configuration file path.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Exists reports whether the config file exists.
func Exists() (bool, error) {
	path, err := ConfigPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat config path: %w", err)
}

// Load reads, normalizes and validates the saved configuration.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, ErrNotConfigured
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	log.Debug("loaded config", "path", path, "store", cfg.Store, "data_dir", cfg.DataDir)
	return cfg, nil
}

// Save writes configuration to disk.
func Save(cfg Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	log.Info("saved config", "path", path)
	return nil
}

func (c *Config) normalize() error {
	dataDir, err := NormalizeDir(c.DataDir)
	if err != nil {
		return fmt.Errorf("invalid data_dir: %w", err)
	}
	c.DataDir = dataDir

	if strings.TrimSpace(c.CatalogFile) != "" {
		catalogFile, err := NormalizeDir(c.CatalogFile)
		if err != nil {
			return fmt.Errorf("invalid catalog_file: %w", err)
		}
		c.CatalogFile = catalogFile
	}

	c.applyDefaults()
	return c.Validate()
}

// NormalizeDir expands and normalizes a path from the config file.
func NormalizeDir(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is required")
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}

	return filepath.Clean(abs), nil
}

func expandHome(path string) (string, error) {
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
