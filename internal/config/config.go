// Package config loads config.yml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/regenrek/panelctx/internal/appdirs"
	"github.com/regenrek/panelctx/internal/logging"
	"github.com/regenrek/panelctx/internal/runenv"
	"github.com/regenrek/panelctx/internal/userpath"
)

const (
	HostTmux   = "tmux"
	HostMemory = "memory"

	DefaultRestoreParallel   = 1
	DefaultShellReadyTimeout = 5 * time.Second
	DefaultCommandTimeout    = 2 * time.Second
	DefaultTmuxPollInterval  = 500 * time.Millisecond
	DefaultTmuxBin           = "tmux"
	DefaultTmuxWindow        = "panelctx"
	maxRestoreParallel       = 16
	minTmuxPollInterval      = 50 * time.Millisecond
)

type Config struct {
	Store     StoreConfig     `yaml:"store,omitempty"`
	Restore   RestoreConfig   `yaml:"restore,omitempty"`
	Navigator NavigatorConfig `yaml:"navigator,omitempty"`
	Host      HostConfig      `yaml:"host,omitempty"`
	Logging   logging.Config  `yaml:"logging,omitempty"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
	// Autosave persists after every mutation. Nil means true.
	Autosave *bool `yaml:"autosave,omitempty"`
}

type RestoreConfig struct {
	// OnStart restores the store when a long-running process starts.
	OnStart             bool `yaml:"on_start,omitempty"`
	Parallel            int  `yaml:"parallel,omitempty"`
	ShellReadyTimeoutMS int  `yaml:"shell_ready_timeout_ms,omitempty"`
	CommandTimeoutMS    int  `yaml:"command_timeout_ms,omitempty"`
}

type NavigatorConfig struct {
	// Fuzzy enables the subsequence tier. Nil means true.
	Fuzzy *bool `yaml:"fuzzy,omitempty"`
}

type HostConfig struct {
	Type string     `yaml:"type,omitempty"`
	Tmux TmuxConfig `yaml:"tmux,omitempty"`
}

type TmuxConfig struct {
	Bin            string `yaml:"bin,omitempty"`
	PollIntervalMS int    `yaml:"poll_interval_ms,omitempty"`
	// DefaultWindow is the tmux session used when a location has no window.
	DefaultWindow string `yaml:"default_window,omitempty"`
}

// Load reads path. A missing file yields the zero Config.
func Load(path string) (Config, error) {
	var cfg Config
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault reads the config from the default location unless fresh
// config is requested by environment.
func LoadDefault() (Config, string, error) {
	if runenv.FreshConfigEnabled() {
		return Config{}, "", nil
	}
	path, err := appdirs.DefaultConfigPath()
	if err != nil {
		return Config{}, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Normalized fills defaults and clamps out-of-range values.
func (c Config) Normalized() (Config, error) {
	cfg := c
	cfg.Store.Path = userpath.Clean(cfg.Store.Path)
	if cfg.Store.Path == "" {
		path, err := appdirs.DefaultStorePath()
		if err != nil {
			return Config{}, fmt.Errorf("config: store path: %w", err)
		}
		cfg.Store.Path = path
	}
	if cfg.Store.Autosave == nil {
		cfg.Store.Autosave = boolPtr(true)
	}
	if cfg.Restore.Parallel <= 0 {
		cfg.Restore.Parallel = DefaultRestoreParallel
	}
	if cfg.Restore.Parallel > maxRestoreParallel {
		cfg.Restore.Parallel = maxRestoreParallel
	}
	if cfg.Restore.ShellReadyTimeoutMS <= 0 {
		cfg.Restore.ShellReadyTimeoutMS = int(DefaultShellReadyTimeout / time.Millisecond)
	}
	if cfg.Restore.CommandTimeoutMS <= 0 {
		cfg.Restore.CommandTimeoutMS = int(DefaultCommandTimeout / time.Millisecond)
	}
	if cfg.Navigator.Fuzzy == nil {
		cfg.Navigator.Fuzzy = boolPtr(true)
	}
	if override := runenv.Host(); override != "" {
		cfg.Host.Type = override
	}
	cfg.Host.Type = strings.ToLower(strings.TrimSpace(cfg.Host.Type))
	if cfg.Host.Type == "" {
		cfg.Host.Type = HostTmux
	}
	switch cfg.Host.Type {
	case HostTmux, HostMemory:
	default:
		return Config{}, fmt.Errorf("config: host.type: invalid %q", cfg.Host.Type)
	}
	cfg.Host.Tmux.Bin = strings.TrimSpace(cfg.Host.Tmux.Bin)
	if cfg.Host.Tmux.Bin == "" {
		cfg.Host.Tmux.Bin = DefaultTmuxBin
	}
	if cfg.Host.Tmux.PollIntervalMS <= 0 {
		cfg.Host.Tmux.PollIntervalMS = int(DefaultTmuxPollInterval / time.Millisecond)
	}
	if time.Duration(cfg.Host.Tmux.PollIntervalMS)*time.Millisecond < minTmuxPollInterval {
		cfg.Host.Tmux.PollIntervalMS = int(minTmuxPollInterval / time.Millisecond)
	}
	cfg.Host.Tmux.DefaultWindow = strings.TrimSpace(cfg.Host.Tmux.DefaultWindow)
	if cfg.Host.Tmux.DefaultWindow == "" {
		cfg.Host.Tmux.DefaultWindow = DefaultTmuxWindow
	}
	if _, err := cfg.Logging.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) AutosaveEnabled() bool {
	return c.Store.Autosave == nil || *c.Store.Autosave
}

func (c Config) FuzzyEnabled() bool {
	return c.Navigator.Fuzzy == nil || *c.Navigator.Fuzzy
}

func (r RestoreConfig) ShellReadyTimeout() time.Duration {
	return time.Duration(r.ShellReadyTimeoutMS) * time.Millisecond
}

func (r RestoreConfig) CommandTimeout() time.Duration {
	return time.Duration(r.CommandTimeoutMS) * time.Millisecond
}

func (t TmuxConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMS) * time.Millisecond
}

func boolPtr(v bool) *bool { return &v }
