// Package config handles the XDG configuration directory, the optional
// config.toml file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	// AppName is the application directory name.
	AppName = "ynote"

	// ConfigFile is the optional settings filename.
	ConfigFile = "config.toml"

	// StateFile is the local state database filename.
	StateFile = "state.db"

	// EnvBaseURL overrides the API base URL.
	EnvBaseURL = "YNOTE_API_URL"

	// DefaultBaseURL is where the API server listens in development.
	DefaultBaseURL = "http://localhost:9080"

	// DefaultAPITimeout bounds each API call.
	DefaultAPITimeout = 5 * time.Second

	// DefaultUndoTimeout is how long a deleted note can be restored.
	DefaultUndoTimeout = 5 * time.Second
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// BaseURL is the API origin, without the /api prefix.
	BaseURL string

	// APITimeout bounds each API call.
	APITimeout time.Duration

	// UndoTimeout is the validity window of the undo affordance.
	UndoTimeout time.Duration

	// Stdin is where prompts and the interactive shell read from.
	Stdin io.Reader
}

type fileConfig struct {
	API  fileAPIConfig  `toml:"api"`
	Undo fileUndoConfig `toml:"undo"`
}

type fileAPIConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

type fileUndoConfig struct {
	Timeout string `toml:"timeout"`
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/ynote or $HOME/.config/ynote.
// Settings come from defaults, then config.toml, then the environment
// (including a .env file in the working directory).
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{
		Dir:         dir,
		BaseURL:     DefaultBaseURL,
		APITimeout:  DefaultAPITimeout,
		UndoTimeout: DefaultUndoTimeout,
		Stdin:       os.Stdin,
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}

	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("invalid .env: %w", err)
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.FilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	if v := strings.TrimSpace(fc.API.BaseURL); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(fc.API.Timeout); v != "" {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: api.timeout: %w", ConfigFile, err)
		}
		c.APITimeout = d
	}
	if v := strings.TrimSpace(fc.Undo.Timeout); v != "" {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: undo.timeout: %w", ConfigFile, err)
		}
		c.UndoTimeout = d
	}
	return nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive: %s", s)
	}
	return d, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// FilePath returns the path to config.toml.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// StatePath returns the path to the local state database.
func (c *Config) StatePath() string {
	return filepath.Join(c.Dir, StateFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// Logger returns a debug logger writing to w when Debug is set,
// and a discarding logger otherwise.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if !c.Debug || w == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
