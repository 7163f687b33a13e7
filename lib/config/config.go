// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/tether/spool"
)

// EnvConfigPath names the environment variable consulted when no
// --config-file flag is given.
const EnvConfigPath = "TETHER_CONFIG"

// Motd modes.
const (
	MotdNever = "never"
	MotdDump  = "dump"
)

// ActionDetach is the only keybinding action.
const ActionDetach = "detach"

// Config is the tether configuration.
type Config struct {
	// Shell is the program started in new sessions. Empty means the
	// attaching client's $SHELL, falling back to /bin/sh.
	Shell string `toml:"shell" yaml:"shell" json:"shell"`

	// Env is set in every new session, overriding inherited values.
	Env map[string]string `toml:"env" yaml:"env" json:"env"`

	// ForwardEnv names variables copied from the attaching client's
	// environment into a new session. TERM and DISPLAY are always
	// forwarded.
	ForwardEnv []string `toml:"forward_env" yaml:"forward_env" json:"forward_env"`

	// SessionRestoreMode is "simple", "screen", "lines", or "lines:N".
	// Default: screen
	SessionRestoreMode string `toml:"session_restore_mode" yaml:"session_restore_mode" json:"session_restore_mode"`

	// OutputSpoolLines is the number of lines kept in scrollback for
	// "lines" mode without an explicit count.
	// Default: 500
	OutputSpoolLines int `toml:"output_spool_lines" yaml:"output_spool_lines" json:"output_spool_lines"`

	// VirtualWidth is the emulator width used in lines mode, wide
	// enough that shell output does not wrap.
	// Default: 1024
	VirtualWidth int `toml:"virtual_width" yaml:"virtual_width" json:"virtual_width"`

	// DefaultTTL applies to new sessions attached without --ttl.
	// Zero means sessions live until killed.
	DefaultTTL Duration `toml:"default_ttl" yaml:"default_ttl" json:"default_ttl"`

	// PromptPrefix is prepended to the shell prompt. $TETHER_SESSION_NAME
	// expands inside the shell. An explicitly empty value disables
	// prompt injection and the sentinel handshake entirely.
	// Default: "tether:$TETHER_SESSION_NAME "
	PromptPrefix *string `toml:"prompt_prefix" yaml:"prompt_prefix" json:"prompt_prefix"`

	// Motd is "never" or "dump".
	// Default: never
	Motd string `toml:"motd" yaml:"motd" json:"motd"`

	// MotdFile is shown when Motd is "dump".
	// Default: /etc/motd
	MotdFile string `toml:"motd_file" yaml:"motd_file" json:"motd_file"`

	// Keybindings are client-side chord bindings.
	// Default: [{binding = "Ctrl-Space Ctrl-q", action = "detach"}]
	Keybindings []Keybinding `toml:"keybindings" yaml:"keybindings" json:"keybindings"`

	// InitialPath overrides PATH in new sessions.
	InitialPath string `toml:"initial_path" yaml:"initial_path" json:"initial_path"`
}

// Keybinding maps a chord sequence such as "Ctrl-Space Ctrl-q" to an
// action.
type Keybinding struct {
	Binding string `toml:"binding" yaml:"binding" json:"binding"`
	Action  string `toml:"action" yaml:"action" json:"action"`
}

// Duration is a time.Duration written as a Go duration string ("90m").
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultPromptPrefix is used when prompt_prefix is absent.
const DefaultPromptPrefix = "tether:$TETHER_SESSION_NAME "

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		SessionRestoreMode: "screen",
		OutputSpoolLines:   500,
		VirtualWidth:       1024,
		Motd:               MotdNever,
		MotdFile:           "/etc/motd",
		Keybindings: []Keybinding{
			{Binding: "Ctrl-Space Ctrl-q", Action: ActionDetach},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/tether/config.toml, using
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tether", "config.toml")
}

// Load resolves the configuration file and loads it. flagPath is the
// value of --config-file and takes precedence over TETHER_CONFIG.
func Load(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		return LoadFile(path)
	}

	path = DefaultPath()
	if path == "" {
		return Default(), nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile loads and validates the configuration at path, layered on
// top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := cfg.decode(path, data); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", "":
		return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(c)
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		return decoder.Decode(c)
	default:
		return fmt.Errorf("unsupported config extension %q (want .toml, .yaml, .yml, .json, or .jsonc)", filepath.Ext(path))
	}
}

// Prompt returns the effective prompt prefix.
func (c *Config) Prompt() string {
	if c.PromptPrefix == nil {
		return DefaultPromptPrefix
	}
	return *c.PromptPrefix
}

// RestoreMode parses SessionRestoreMode. Call Validate first; an
// invalid value falls back to screen mode.
func (c *Config) RestoreMode() spool.RestoreMode {
	mode, err := spool.ParseRestoreMode(c.SessionRestoreMode, c.OutputSpoolLines)
	if err != nil {
		return spool.ScreenMode()
	}
	return mode
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	c.Shell = expandVars(c.Shell)
	c.MotdFile = expandVars(c.MotdFile)
	c.InitialPath = expandVars(c.InitialPath)
}

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := spool.ParseRestoreMode(c.SessionRestoreMode, c.OutputSpoolLines); err != nil {
		errs = append(errs, fmt.Errorf("session_restore_mode: %w", err))
	}
	if c.OutputSpoolLines <= 0 {
		errs = append(errs, fmt.Errorf("output_spool_lines must be positive, got %d", c.OutputSpoolLines))
	}
	if c.VirtualWidth < 80 {
		errs = append(errs, fmt.Errorf("virtual_width must be at least 80, got %d", c.VirtualWidth))
	}
	if c.DefaultTTL < 0 {
		errs = append(errs, fmt.Errorf("default_ttl must not be negative"))
	}
	if c.Motd != MotdNever && c.Motd != MotdDump {
		errs = append(errs, fmt.Errorf("motd must be %q or %q, got %q", MotdNever, MotdDump, c.Motd))
	}
	for i, binding := range c.Keybindings {
		if binding.Action != ActionDetach {
			errs = append(errs, fmt.Errorf("keybindings[%d]: unknown action %q", i, binding.Action))
		}
		if strings.TrimSpace(binding.Binding) == "" {
			errs = append(errs, fmt.Errorf("keybindings[%d]: empty binding", i))
		}
	}
	for name := range c.Env {
		if name == "" || strings.Contains(name, "=") {
			errs = append(errs, fmt.Errorf("env: invalid variable name %q", name))
		}
	}

	return errors.Join(errs...)
}
