package identity

import "testing"

func TestResolveBinaryName(t *testing.T) {
	if got := ResolveBinaryName(nil); got != CLIName {
		t.Fatalf("expected default %q, got %q", CLIName, got)
	}
	if got := ResolveBinaryName([]string{"/usr/local/bin/panelctx"}); got != CLIName {
		t.Fatalf("expected %q, got %q", CLIName, got)
	}
	if got := ResolveBinaryName([]string{"unknown"}); got != CLIName {
		t.Fatalf("expected fallback %q, got %q", CLIName, got)
	}
}

func TestNormalizeCLIName(t *testing.T) {
	cases := map[string]string{
		"":              CLIName,
		"PANELCTX":      CLIName,
		"panelctx.exe":  CLIName,
		"something-odd": CLIName,
	}
	for input, expected := range cases {
		if got := NormalizeCLIName(input); got != expected {
			t.Fatalf("NormalizeCLIName(%q) = %q, want %q", input, got, expected)
		}
	}
}
