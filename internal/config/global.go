// Package config loads drawbridge settings from ~/.drawbridge/settings.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the settings file inside the config directory.
const SettingsFileName = "settings.yaml"

// Settings holds global drawbridge settings.
type Settings struct {
	AuthRoutingMode     string            `yaml:"auth_routing_mode,omitempty"`
	FeatureAuthProfiles map[string]string `yaml:"feature_auth_profiles,omitempty"`
	Debug               DebugConfig       `yaml:"debug,omitempty"`
	Runtime             RuntimeConfig     `yaml:"runtime,omitempty"`
}

// DebugConfig controls debug log files.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days,omitempty"`
}

// RuntimeConfig describes the interpreter that background tasks run under.
type RuntimeConfig struct {
	PythonExecutable string `yaml:"python_executable,omitempty"`
	PythonPath       string `yaml:"python_path,omitempty"`
}

// ConfigError reports a settings file that exists but cannot be used.
type ConfigError struct {
	Path  string
	Cause error
	Hint  string
}

func (e *ConfigError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("settings %s: %v\n\n%s", e.Path, e.Cause, e.Hint)
	}
	return fmt.Sprintf("settings %s: %v", e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		AuthRoutingMode: string(ModeGlobal),
		Debug: DebugConfig{
			RetentionDays: 14,
		},
	}
}

// Dir returns the drawbridge config directory: $DRAWBRIDGE_HOME, or
// ~/.drawbridge.
func Dir() string {
	if dir := os.Getenv("DRAWBRIDGE_HOME"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".drawbridge")
	}
	return filepath.Join(homeDir, ".drawbridge")
}

// SettingsPath returns the path of the settings file.
func SettingsPath() string {
	return filepath.Join(Dir(), SettingsFileName)
}

// Load reads settings from path and applies environment overrides.
//
// A missing file yields defaults. A file that cannot be read or parsed also
// yields defaults, together with a *ConfigError so callers that write the
// file back can refuse to clobber it.
func Load(path string) (*Settings, error) {
	cfg, err := ReadFile(path)
	applyEnv(cfg)
	return cfg, err
}

// ReadFile reads settings from path without environment overrides. Commands
// that edit and Save the file use it so a one-off DRAWBRIDGE_* variable is
// never persisted. Errors follow Load.
func ReadFile(path string) (*Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return DefaultSettings(), &ConfigError{
				Path:  path,
				Cause: uerr,
				Hint:  "Fix the YAML syntax or delete the file to restore defaults.",
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, &ConfigError{Path: path, Cause: err}
	}
	return cfg, nil
}

func applyEnv(cfg *Settings) {
	if mode := os.Getenv("DRAWBRIDGE_ROUTING_MODE"); mode != "" {
		cfg.AuthRoutingMode = mode
	}
	if days := os.Getenv("DRAWBRIDGE_DEBUG_RETENTION_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			cfg.Debug.RetentionDays = n
		}
	}
	if py := os.Getenv("DRAWBRIDGE_PYTHON"); py != "" {
		cfg.Runtime.PythonExecutable = py
	}
}

// Save writes settings to path atomically.
func Save(path string, cfg *Settings) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return WriteFileAtomic(path, data, 0600)
}

// WriteFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
