// Package config loads project configuration: defaults, then
// pipeaudit.yaml, then PIPEAUDIT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file at the project root.
const FileName = "pipeaudit.yaml"

// Ledger backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultExecutor identifies runs when PIPEAUDIT_EXECUTOR is unset.
const DefaultExecutor = "anonymous"

// Config is the resolved project configuration. Relative paths are
// relative to Root.
type Config struct {
	ContractsDir  string `yaml:"contracts_dir" env:"PIPEAUDIT_CONTRACTS_DIR"`
	LogsDir       string `yaml:"logs_dir" env:"PIPEAUDIT_LOGS_DIR"`
	LedgerBackend string `yaml:"ledger_backend" env:"PIPEAUDIT_LEDGER_BACKEND"`
	LedgerPath    string `yaml:"ledger_path,omitempty" env:"PIPEAUDIT_LEDGER_PATH"`
	ProfilesPath  string `yaml:"profiles_path" env:"PIPEAUDIT_PROFILES_PATH"`
	Workers       int    `yaml:"workers,omitempty" env:"PIPEAUDIT_WORKERS"`
	MaxFileSizeMB int64  `yaml:"max_file_size_mb,omitempty" env:"PIPEAUDIT_MAX_FILE_SIZE_MB"`

	// Executor is the identity recorded in every audit record. Environment only.
	Executor string `yaml:"-" env:"PIPEAUDIT_EXECUTOR"`

	// Root is the project directory the configuration was loaded from.
	Root string `yaml:"-"`
}

// Default returns the configuration used when no file or variable
// overrides a setting.
func Default() Config {
	return Config{
		ContractsDir:  "contracts",
		LogsDir:       "logs",
		LedgerBackend: BackendFile,
		ProfilesPath:  "profiles.toml",
		Executor:      DefaultExecutor,
		Root:          ".",
	}
}

// Load reads FileName from root, applies environment overrides, and
// validates the result. A missing file yields the defaults.
func Load(root string) (Config, error) {
	cfg := Default()
	cfg.Root = root

	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read %s: %w", FileName, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parsing %s: %w", FileName, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Executor == "" {
		cfg.Executor = DefaultExecutor
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	var errs []error
	if c.ContractsDir == "" {
		errs = append(errs, errors.New("contracts_dir must not be empty"))
	}
	if c.LogsDir == "" {
		errs = append(errs, errors.New("logs_dir must not be empty"))
	}
	if c.LedgerBackend != BackendFile && c.LedgerBackend != BackendSQLite {
		errs = append(errs, fmt.Errorf("ledger_backend %q: must be %q or %q", c.LedgerBackend, BackendFile, BackendSQLite))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d: must not be negative", c.Workers))
	}
	if c.MaxFileSizeMB < 0 {
		errs = append(errs, fmt.Errorf("max_file_size_mb %d: must not be negative", c.MaxFileSizeMB))
	}
	return errors.Join(errs...)
}

// Path resolves p against Root.
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Contracts returns the resolved contracts directory.
func (c Config) Contracts() string { return c.Path(c.ContractsDir) }

// Logs returns the resolved audit log directory.
func (c Config) Logs() string { return c.Path(c.LogsDir) }

// Profiles returns the resolved profiles file.
func (c Config) Profiles() string { return c.Path(c.ProfilesPath) }

// Ledger returns the resolved ledger location for the configured backend:
// ledger.jsonl (file) or ledger.db (sqlite) inside the log directory unless
// ledger_path is set.
func (c Config) Ledger() string {
	if c.LedgerPath != "" {
		return c.Path(c.LedgerPath)
	}
	name := "ledger.jsonl"
	if c.LedgerBackend == BackendSQLite {
		name = "ledger.db"
	}
	return filepath.Join(c.Logs(), name)
}

// Marshal renders c as a pipeaudit.yaml document.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", FileName, err)
	}
	return data, nil
}
