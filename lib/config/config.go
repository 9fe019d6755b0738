// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration
// strings ("10s", "1m30s") as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var nanoseconds int64
	if err := value.Decode(&nanoseconds); err == nil {
		*d = Duration(nanoseconds)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting the string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines and demo rigs.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Corral.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Launcher configures node supervision.
	Launcher LauncherConfig `yaml:"launcher"`

	// Remote configures SSH execution on declared machines.
	Remote RemoteConfig `yaml:"remote"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Launcher *LauncherConfig `yaml:"launcher,omitempty"`
	Remote   *RemoteConfig   `yaml:"remote,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Corral data.
	Root string `yaml:"root"`

	// Bin is where node executables are installed. This provides
	// hermetic binary resolution independent of user PATH.
	Bin string `yaml:"bin"`

	// Run is the runtime directory for the control socket and
	// run-state file.
	Run string `yaml:"run"`

	// State is where persistent state is stored.
	State string `yaml:"state"`

	// Log is where per-node output logs are written.
	Log string `yaml:"log"`
}

// LauncherConfig configures node supervision.
type LauncherConfig struct {
	// ShutdownGrace is how long to wait after SIGTERM before sending
	// SIGKILL to a node's process group. Default: 10s.
	ShutdownGrace Duration `yaml:"shutdown_grace"`

	// RespawnDelay is the default delay before restarting a respawn
	// node, used when the descriptor does not set one. Default: 1s.
	RespawnDelay Duration `yaml:"respawn_delay"`

	// RespawnBackoffCeiling caps the exponential backoff applied to
	// rapidly crashing respawn nodes. Default: 30s.
	RespawnBackoffCeiling Duration `yaml:"respawn_backoff_ceiling"`

	// StableRunThreshold is how long a node must stay up for its
	// respawn backoff to reset. Default: 60s.
	StableRunThreshold Duration `yaml:"stable_run_threshold"`
}

// RemoteConfig configures SSH execution on declared machines.
type RemoteConfig struct {
	// Port is the default SSH port for machines that do not declare
	// one. Default: 22.
	Port int `yaml:"port"`

	// DialTimeout bounds connection establishment. Default: 10s.
	DialTimeout Duration `yaml:"dial_timeout"`

	// Inventory is the path to the JSONC machine inventory file with
	// per-machine key files and users. Empty disables remote launch.
	Inventory string `yaml:"inventory"`

	// RequireInventory controls whether a descriptor that declares a
	// machine fails when no inventory is configured.
	// Default: false (development), true (production).
	RequireInventory bool `yaml:"require_inventory"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback —
// the config file is required for non-default deployments.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "corral")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  defaultRoot,
			Bin:   filepath.Join(defaultRoot, "bin"),
			Run:   filepath.Join(defaultRoot, "run"),
			State: filepath.Join(defaultRoot, "state"),
			Log:   filepath.Join(defaultRoot, "log"),
		},
		Launcher: LauncherConfig{
			ShutdownGrace:         Duration(10 * time.Second),
			RespawnDelay:          Duration(time.Second),
			RespawnBackoffCeiling: Duration(30 * time.Second),
			StableRunThreshold:    Duration(time.Minute),
		},
		Remote: RemoteConfig{
			Port:        22,
			DialTimeout: Duration(10 * time.Second),
		},
	}
}

// Load loads configuration from the CORRAL_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks — if CORRAL_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no
// hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("CORRAL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CORRAL_CONFIG environment variable not set; " +
			"set it to the path of your corral.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific section
// matching Config.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: remote launch must be fully declared.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Remote: &RemoteConfig{RequireInventory: true},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Bin != "" {
			c.Paths.Bin = overrides.Paths.Bin
		}
		if overrides.Paths.Run != "" {
			c.Paths.Run = overrides.Paths.Run
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.Log != "" {
			c.Paths.Log = overrides.Paths.Log
		}
	}

	if overrides.Launcher != nil {
		if overrides.Launcher.ShutdownGrace != 0 {
			c.Launcher.ShutdownGrace = overrides.Launcher.ShutdownGrace
		}
		if overrides.Launcher.RespawnDelay != 0 {
			c.Launcher.RespawnDelay = overrides.Launcher.RespawnDelay
		}
		if overrides.Launcher.RespawnBackoffCeiling != 0 {
			c.Launcher.RespawnBackoffCeiling = overrides.Launcher.RespawnBackoffCeiling
		}
		if overrides.Launcher.StableRunThreshold != 0 {
			c.Launcher.StableRunThreshold = overrides.Launcher.StableRunThreshold
		}
	}

	if overrides.Remote != nil {
		if overrides.Remote.Port != 0 {
			c.Remote.Port = overrides.Remote.Port
		}
		if overrides.Remote.DialTimeout != 0 {
			c.Remote.DialTimeout = overrides.Remote.DialTimeout
		}
		if overrides.Remote.Inventory != "" {
			c.Remote.Inventory = overrides.Remote.Inventory
		}
		// RequireInventory is a bool, so it always applies from overrides.
		c.Remote.RequireInventory = overrides.Remote.RequireInventory
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CORRAL_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CORRAL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Paths.Run = expandVars(c.Paths.Run, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Log = expandVars(c.Paths.Log, vars)
	c.Remote.Inventory = expandVars(c.Remote.Inventory, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Run == "" {
		errs = append(errs, fmt.Errorf("paths.run is required"))
	}

	if c.Launcher.ShutdownGrace <= 0 {
		errs = append(errs, fmt.Errorf("launcher.shutdown_grace must be positive"))
	}
	if c.Launcher.RespawnDelay < 0 {
		errs = append(errs, fmt.Errorf("launcher.respawn_delay must not be negative"))
	}
	if c.Launcher.RespawnBackoffCeiling < c.Launcher.RespawnDelay {
		errs = append(errs, fmt.Errorf("launcher.respawn_backoff_ceiling must not be below launcher.respawn_delay"))
	}

	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		errs = append(errs, fmt.Errorf("remote.port must be in 1..65535"))
	}
	if c.Remote.RequireInventory && c.Remote.Inventory == "" {
		errs = append(errs, fmt.Errorf("remote.inventory is required when remote.require_inventory is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Bin,
		c.Paths.Run,
		c.Paths.State,
		c.Paths.Log,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// BinaryPath returns the full path to a node executable. It looks in
// Paths.Bin first, then falls back to exec.LookPath. This provides
// hermetic binary resolution when Bin is configured.
func (c *Config) BinaryPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return name, nil
	}

	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}

// SocketPath returns the control socket path under the run directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.Run, "launcher.sock")
}

// RunStatePath returns the run-state (watchdog) file path under the
// run directory.
func (c *Config) RunStatePath() string {
	return filepath.Join(c.Paths.Run, "run-state.json")
}
