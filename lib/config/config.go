// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted when no --config
// flag is given.
const EnvVar = "PIPER_CONFIG"

// Config is the complete piper-server configuration.
type Config struct {
	// Listen is the TCP address to bind, host:port.
	Listen string `yaml:"listen" toml:"listen" json:"listen" jsonschema:"description=TCP address to bind (host:port); ignored under systemd socket activation"`

	// Backlog is the listen(2) queue length.
	Backlog int `yaml:"backlog" toml:"backlog" json:"backlog" jsonschema:"minimum=1"`

	Session SessionConfig `yaml:"session" toml:"session" json:"session"`
	Child   ChildConfig   `yaml:"child" toml:"child" json:"child"`
	Journal JournalConfig `yaml:"journal" toml:"journal" json:"journal"`
	Log     LogConfig     `yaml:"log" toml:"log" json:"log"`
}

// SessionConfig tunes the per-connection engine.
type SessionConfig struct {
	// ChunkSize bounds each read from the client or a child pipe.
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size" json:"chunk_size" jsonschema:"minimum=1,maximum=1048576"`

	// HighWater is the outbound queue depth at which reading from the
	// feeding side pauses. Zero means four chunks.
	HighWater int `yaml:"high_water" toml:"high_water" json:"high_water" jsonschema:"minimum=0"`

	// MaxCommandBytes bounds the command line, terminator included.
	MaxCommandBytes int `yaml:"max_command_bytes" toml:"max_command_bytes" json:"max_command_bytes" jsonschema:"minimum=1"`

	// IntakeTimeout bounds the wait for the command line. Zero waits
	// indefinitely.
	IntakeTimeout Duration `yaml:"intake_timeout" toml:"intake_timeout" json:"intake_timeout"`
}

// ChildConfig controls how programs are spawned and ended.
type ChildConfig struct {
	// Env is a list of KEY=VALUE entries added to the child's
	// environment.
	Env []string `yaml:"env" toml:"env" json:"env"`

	// InheritEnv starts the child's environment from the server's own.
	InheritEnv bool `yaml:"inherit_env" toml:"inherit_env" json:"inherit_env"`

	// Dir is the child's working directory. Empty means the server's.
	Dir string `yaml:"dir" toml:"dir" json:"dir"`

	// Setpgid puts each child in its own process group so termination
	// signals reach its descendants.
	Setpgid bool `yaml:"setpgid" toml:"setpgid" json:"setpgid"`

	// Grace is the interval between SIGTERM and SIGKILL.
	Grace Duration `yaml:"grace" toml:"grace" json:"grace"`
}

// JournalConfig configures the session journal.
type JournalConfig struct {
	// Path is the journal file. Empty disables the journal.
	Path string `yaml:"path" toml:"path" json:"path"`

	// Compression is none, lz4 or zstd.
	Compression string `yaml:"compression" toml:"compression" json:"compression" jsonschema:"enum=none,enum=lz4,enum=zstd"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Format is text or json.
	Format string `yaml:"format" toml:"format" json:"format" jsonschema:"enum=text,enum=json"`

	// Debug enables debug-level output.
	Debug bool `yaml:"debug" toml:"debug" json:"debug"`
}

// Default returns the built-in configuration: the port, backlog, chunk
// size and grace interval piper has always used.
func Default() *Config {
	return &Config{
		Listen:  "0.0.0.0:5000",
		Backlog: 10,
		Session: SessionConfig{
			ChunkSize:       16384,
			MaxCommandBytes: 16384,
		},
		Child: ChildConfig{
			InheritEnv: true,
			Grace:      Duration(time.Second),
		},
		Journal: JournalConfig{
			Compression: "none",
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Load loads the file at path, or the file named by PIPER_CONFIG when
// path is empty. With neither it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of Default and expands
// variables. It does not validate; call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile decodes path into c, leaving fields the file does not
// mention untouched.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil

	case ".toml":
		metadata, err := toml.Decode(string(data), c)
		if err != nil {
			return err
		}
		if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return nil

	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		return decoder.Decode(c)

	default:
		return fmt.Errorf("unsupported configuration format %q (want .yaml, .yml, .toml, .json or .jsonc)", filepath.Ext(path))
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// fields that name places.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Listen = expandVars(c.Listen, vars)
	c.Child.Dir = expandVars(c.Child.Dir, vars)
	for i, entry := range c.Child.Env {
		c.Child.Env[i] = expandVars(entry, vars)
	}
	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
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

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if _, port, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen: %w", err))
	} else if port == "" {
		errs = append(errs, fmt.Errorf("listen: %q has no port", c.Listen))
	}

	if c.Backlog < 1 {
		errs = append(errs, fmt.Errorf("backlog must be at least 1, got %d", c.Backlog))
	}

	if c.Session.ChunkSize < 1 || c.Session.ChunkSize > 1<<20 {
		errs = append(errs, fmt.Errorf("session.chunk_size must be between 1 and %d, got %d", 1<<20, c.Session.ChunkSize))
	}
	if c.Session.HighWater != 0 && c.Session.HighWater < c.Session.ChunkSize {
		errs = append(errs, fmt.Errorf("session.high_water (%d) must be 0 or at least session.chunk_size (%d)",
			c.Session.HighWater, c.Session.ChunkSize))
	}
	if c.Session.MaxCommandBytes < 1 {
		errs = append(errs, fmt.Errorf("session.max_command_bytes must be at least 1, got %d", c.Session.MaxCommandBytes))
	}
	if c.Session.IntakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.intake_timeout must not be negative"))
	}

	for _, entry := range c.Child.Env {
		if name, _, ok := strings.Cut(entry, "="); !ok || name == "" {
			errs = append(errs, fmt.Errorf("child.env entry %q is not KEY=VALUE", entry))
		}
	}
	if c.Child.Dir != "" {
		if info, err := os.Stat(c.Child.Dir); err != nil {
			errs = append(errs, fmt.Errorf("child.dir: %w", err))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("child.dir %s is not a directory", c.Child.Dir))
		}
	}
	if c.Child.Grace <= 0 {
		errs = append(errs, fmt.Errorf("child.grace must be positive"))
	}

	switch c.Journal.Compression {
	case "", "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("journal.compression must be one of: none, lz4, zstd"))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: text, json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ChildEnv returns the environment a spawned child receives. The result
// is never nil, so an empty environment stays empty.
func (c *Config) ChildEnv() []string {
	env := make([]string, 0, len(c.Child.Env))
	if c.Child.InheritEnv {
		env = append(env, os.Environ()...)
	}
	return append(env, c.Child.Env...)
}
