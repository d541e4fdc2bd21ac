package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/regenrek/panelctx/internal/identity"
	"github.com/regenrek/panelctx/internal/runenv"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), identity.GlobalConfigFile)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileIsZero(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Restore.Parallel != 0 || cfg.Store.Path != "" {
		t.Fatalf("expected zero config, got %#v", cfg)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Fatalf("Load(empty) error: %v", err)
	}
}

func TestLoadParsesSections(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /tmp/panels.json
  autosave: false
restore:
  on_start: true
  parallel: 3
  shell_ready_timeout_ms: 900
navigator:
  fuzzy: false
host:
  type: memory
  tmux:
    bin: /usr/local/bin/tmux
    poll_interval_ms: 10
logging:
  level: debug
`)
	t.Setenv(runenv.HostEnv, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg, err = cfg.Normalized()
	if err != nil {
		t.Fatalf("Normalized() error: %v", err)
	}
	if cfg.Store.Path != "/tmp/panels.json" || cfg.AutosaveEnabled() {
		t.Fatalf("store section = %#v", cfg.Store)
	}
	if !cfg.Restore.OnStart || cfg.Restore.Parallel != 3 {
		t.Fatalf("restore section = %#v", cfg.Restore)
	}
	if cfg.Restore.ShellReadyTimeout() != 900*time.Millisecond {
		t.Fatalf("shell ready timeout = %v", cfg.Restore.ShellReadyTimeout())
	}
	if cfg.Restore.CommandTimeout() != DefaultCommandTimeout {
		t.Fatalf("command timeout = %v", cfg.Restore.CommandTimeout())
	}
	if cfg.FuzzyEnabled() {
		t.Fatalf("expected fuzzy disabled")
	}
	if cfg.Host.Type != HostMemory || cfg.Host.Tmux.Bin != "/usr/local/bin/tmux" {
		t.Fatalf("host section = %#v", cfg.Host)
	}
	if cfg.Host.Tmux.PollInterval() != minTmuxPollInterval {
		t.Fatalf("poll interval = %v, want clamp to %v", cfg.Host.Tmux.PollInterval(), minTmuxPollInterval)
	}
	if cfg.Logging.Level == nil || *cfg.Logging.Level != "debug" {
		t.Fatalf("logging level not parsed")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "restore:\n  paralel: 2\n"))
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestNormalizedDefaults(t *testing.T) {
	base := t.TempDir()
	t.Setenv(runenv.ConfigDirEnv, base)
	t.Setenv(runenv.DataDirEnv, "")
	t.Setenv(runenv.HostEnv, "")
	cfg, err := Config{}.Normalized()
	if err != nil {
		t.Fatalf("Normalized() error: %v", err)
	}
	if want := filepath.Join(base, identity.StoreFile); cfg.Store.Path != want {
		t.Fatalf("store path = %q, want %q", cfg.Store.Path, want)
	}
	if !cfg.AutosaveEnabled() || !cfg.FuzzyEnabled() {
		t.Fatalf("expected autosave and fuzzy enabled by default")
	}
	if cfg.Restore.Parallel != DefaultRestoreParallel {
		t.Fatalf("parallel = %d", cfg.Restore.Parallel)
	}
	if cfg.Host.Type != HostTmux || cfg.Host.Tmux.DefaultWindow != DefaultTmuxWindow {
		t.Fatalf("host defaults = %#v", cfg.Host)
	}
}

func TestNormalizedHostEnvOverride(t *testing.T) {
	t.Setenv(runenv.ConfigDirEnv, t.TempDir())
	t.Setenv(runenv.HostEnv, "memory")
	cfg, err := Config{Host: HostConfig{Type: "tmux"}}.Normalized()
	if err != nil {
		t.Fatalf("Normalized() error: %v", err)
	}
	if cfg.Host.Type != HostMemory {
		t.Fatalf("host type = %q, want memory", cfg.Host.Type)
	}
}

func TestNormalizedRejectsUnknownHost(t *testing.T) {
	t.Setenv(runenv.ConfigDirEnv, t.TempDir())
	t.Setenv(runenv.HostEnv, "")
	if _, err := (Config{Host: HostConfig{Type: "zellij"}}).Normalized(); err == nil {
		t.Fatalf("expected error for unknown host")
	}
}

func TestNormalizedClampsParallel(t *testing.T) {
	t.Setenv(runenv.ConfigDirEnv, t.TempDir())
	t.Setenv(runenv.HostEnv, "")
	cfg, err := Config{Restore: RestoreConfig{Parallel: 500}}.Normalized()
	if err != nil {
		t.Fatalf("Normalized() error: %v", err)
	}
	if cfg.Restore.Parallel != maxRestoreParallel {
		t.Fatalf("parallel = %d, want %d", cfg.Restore.Parallel, maxRestoreParallel)
	}
}

func TestLoadDefaultFreshConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(runenv.ConfigDirEnv, dir)
	if err := os.WriteFile(filepath.Join(dir, identity.GlobalConfigFile), []byte("restore:\n  parallel: 4\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(runenv.FreshConfigEnv, "1")
	cfg, path, err := LoadDefault()
	if err != nil || path != "" || cfg.Restore.Parallel != 0 {
		t.Fatalf("LoadDefault() = %#v, %q, %v", cfg, path, err)
	}
	t.Setenv(runenv.FreshConfigEnv, "")
	cfg, _, err = LoadDefault()
	if err != nil || cfg.Restore.Parallel != 4 {
		t.Fatalf("LoadDefault() = %#v, %v", cfg, err)
	}
}
