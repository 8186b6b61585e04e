// Package config loads and validates the bridge configuration file.
//
// Configuration lives in a single TOML file. Unknown keys are ignored so
// older bridges tolerate newer files; invalid values fail loudly with the
// offending field named.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/hostbridge/internal/node"
)

// Duration is a time.Duration that unmarshals from TOML strings like "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the bridge configuration file.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime"`
	Host    HostConfig    `toml:"host"`
	Env     EnvConfig     `toml:"env"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Log     LogConfig     `toml:"log"`
}

// RuntimeConfig configures interpreter resolution and provisioning.
type RuntimeConfig struct {
	// MinVersion is the minimum interpreter triple, e.g. "20.6.0".
	MinVersion string `toml:"min_version"`
	// PayloadDir is the extension host payload root holding the entry
	// file, node_modules, and the runtime manifest or installer.
	PayloadDir string `toml:"payload_dir"`
	// BundledDir holds a runtime shipped with the distribution, if any.
	BundledDir string `toml:"bundled_dir"`
	// InstallDir overrides the user-local install directory.
	InstallDir string `toml:"install_dir"`
}

// HostConfig configures the host process.
type HostConfig struct {
	// Entry overrides entry file resolution from the payload.
	Entry string `toml:"entry"`
	// GracePeriod is how long Stop waits after the graceful signal
	// before force-killing.
	GracePeriod Duration `toml:"grace_period"`
}

// EnvConfig configures the shell environment snapshot.
type EnvConfig struct {
	// SnapshotMaxAge is the snapshot freshness window.
	SnapshotMaxAge Duration `toml:"snapshot_max_age"`
	// SnapshotPath overrides the per-OS snapshot file location.
	SnapshotPath string `toml:"snapshot_path"`
}

// ProxyConfig carries proxy settings handed to the child when the parent
// environment does not already define them.
type ProxyConfig struct {
	HTTPProxy  string `toml:"http_proxy"`
	HTTPSProxy string `toml:"https_proxy"`
	NoProxy    string `toml:"no_proxy"`
}

// LogConfig configures bridge logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `toml:"level"`
	// File, when set, sends logs to a size-rotated file instead of stderr.
	File string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Runtime: RuntimeConfig{
			MinVersion: "20.6.0",
		},
		Host: HostConfig{
			GracePeriod: Duration(5 * time.Second),
		},
		Env: EnvConfig{
			SnapshotMaxAge: Duration(5 * time.Minute),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "hostbridge", "hostbridge.toml")
}

// Load reads the file at path over the defaults. A missing file yields
// the defaults without error; a present but broken file does not.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), &ParseError{File: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Validate checks field values. Zero durations fall back to defaults
// rather than failing.
func (c *Config) Validate() error {
	if c.Runtime.MinVersion != "" {
		if _, err := node.ParseVersion(c.Runtime.MinVersion); err != nil {
			return &ValidationError{Field: "runtime.min_version", Msg: fmt.Sprintf("invalid version %q", c.Runtime.MinVersion)}
		}
	} else {
		c.Runtime.MinVersion = Default().Runtime.MinVersion
	}

	if c.Host.GracePeriod < 0 {
		return &ValidationError{Field: "host.grace_period", Msg: "must not be negative"}
	}
	if c.Host.GracePeriod == 0 {
		c.Host.GracePeriod = Default().Host.GracePeriod
	}

	if c.Env.SnapshotMaxAge < 0 {
		return &ValidationError{Field: "env.snapshot_max_age", Msg: "must not be negative"}
	}
	if c.Env.SnapshotMaxAge == 0 {
		c.Env.SnapshotMaxAge = Default().Env.SnapshotMaxAge
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "log.level", Msg: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	if c.Log.Level == "" {
		c.Log.Level = Default().Log.Level
	}

	return nil
}

// MinVersion returns the parsed minimum runtime version.
func (c *Config) MinVersion() node.Version {
	v, err := node.ParseVersion(c.Runtime.MinVersion)
	if err != nil {
		return node.MustParseVersion(Default().Runtime.MinVersion)
	}
	return v
}
