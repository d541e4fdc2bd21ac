package appdirs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/regenrek/panelctx/internal/identity"
	"github.com/regenrek/panelctx/internal/runenv"
)

func TestDataDirPathOverrideDoesNotCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv(runenv.DataDirEnv, dir)

	got, err := DataDirPath()
	if err != nil {
		t.Fatalf("DataDirPath() error: %v", err)
	}
	if got != dir {
		t.Fatalf("DataDirPath() = %q, want %q", got, dir)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected data dir to not exist, err=%v", err)
	}
}

func TestDefaultPathsUseOverrides(t *testing.T) {
	base := t.TempDir()
	t.Setenv(runenv.ConfigDirEnv, filepath.Join(base, "cfg"))
	t.Setenv(runenv.DataDirEnv, filepath.Join(base, "data"))

	cfg, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error: %v", err)
	}
	if want := filepath.Join(base, "cfg", identity.GlobalConfigFile); cfg != want {
		t.Fatalf("DefaultConfigPath() = %q, want %q", cfg, want)
	}
	store, err := DefaultStorePath()
	if err != nil {
		t.Fatalf("DefaultStorePath() error: %v", err)
	}
	if want := filepath.Join(base, "data", identity.StoreFile); store != want {
		t.Fatalf("DefaultStorePath() = %q, want %q", store, want)
	}
}

func TestRuntimeDirPathFallsUnderConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv(runenv.RuntimeDirEnv, "")
	t.Setenv(runenv.ConfigDirEnv, base)
	got, err := RuntimeDirPath()
	if err != nil {
		t.Fatalf("RuntimeDirPath() error: %v", err)
	}
	if want := filepath.Join(base, "run"); got != want {
		t.Fatalf("RuntimeDirPath() = %q, want %q", got, want)
	}
}
