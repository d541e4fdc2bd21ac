package userpath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandUser(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("cannot get home dir: %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty string", "", ""},
		{"tilde only", "~", home},
		{"tilde slash path", "~/.config/panelctx", filepath.Join(home, ".config/panelctx")},
		{"absolute path unchanged", "/usr/local/bin", "/usr/local/bin"},
		{"relative path unchanged", "foo/bar", "foo/bar"},
		{"tilde no slash unchanged", "~user", "~user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandUser(tt.path); got != tt.want {
				t.Fatalf("ExpandUser(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestShortenUser(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("cannot get home dir: %v", err)
	}
	if got := ShortenUser(filepath.Join(home, "proj")); got != "~"+string(filepath.Separator)+"proj" {
		t.Fatalf("ShortenUser() = %q", got)
	}
	if got := ShortenUser(home); got != "~" {
		t.Fatalf("ShortenUser(home) = %q", got)
	}
	if got := ShortenUser(home + "sibling"); got != home+"sibling" {
		t.Fatalf("ShortenUser(sibling) = %q", got)
	}
}

func TestClean(t *testing.T) {
	t.Setenv("PANELCTX_TEST_DIR", "/tmp/panelctx-test")
	if got := Clean("  $PANELCTX_TEST_DIR/a/../panels.json "); got != "/tmp/panelctx-test/panels.json" {
		t.Fatalf("Clean() = %q", got)
	}
	if got := Clean("   "); got != "" {
		t.Fatalf("Clean(blank) = %q", got)
	}
}
