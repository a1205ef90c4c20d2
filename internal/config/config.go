// Package config resolves global settings from defaults, the environment
// and the flags given before the command name.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/illarion/vaultkeep/internal/logging"
	"github.com/illarion/vaultkeep/internal/storage"
)

// Environment variables
const (
	EnvDB        = "VAULTKEEP_DB"
	EnvBackend   = "VAULTKEEP_BACKEND"
	EnvLogLevel  = "VAULTKEEP_LOG_LEVEL"
	EnvLogFormat = "VAULTKEEP_LOG_FORMAT"
)

const (
	DefaultDirName  = ".vaultkeep"
	DefaultFileName = "vault.db"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds the settings shared by every command
type Config struct {
	DBPath    string
	Backend   string
	LogLevel  string
	LogFormat string
}

// Default returns the built-in settings. The database lives in the
// user's home directory, or the working directory when there is none.
func Default() Config {
	dir := DefaultDirName
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, DefaultDirName)
	}
	return Config{
		DBPath:    filepath.Join(dir, DefaultFileName),
		Backend:   storage.BackendBolt,
		LogLevel:  "warn",
		LogFormat: logging.FormatConsole,
	}
}

// Load applies the environment and then the global flags in args on top
// of Default. It returns the arguments left after the flags, starting
// with the command name.
func Load(args []string, getenv func(string) string, stderr io.Writer) (Config, []string, error) {
	cfg := Default()
	cfg.applyEnv(getenv)

	fs := flag.NewFlagSet("vaultkeep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the vault database")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend: bolt or libsql")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")
	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, fs.Args(), nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
}

// Validate checks values that would otherwise fail later with a less
// useful message
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: database path is empty", ErrInvalid)
	}
	switch c.Backend {
	case storage.BackendBolt, storage.BackendLibSQL:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if _, err := logging.New(io.Discard, c.LogLevel, c.LogFormat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
