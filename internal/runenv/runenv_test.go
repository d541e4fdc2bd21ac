package runenv

import (
	"testing"
	"time"
)

func TestRestoreTimeoutDefault(t *testing.T) {
	t.Setenv(RestoreTimeoutEnv, "")
	if got := RestoreTimeout(); got != 2*time.Minute {
		t.Fatalf("expected default timeout 2m, got %v", got)
	}
}

func TestRestoreTimeoutDuration(t *testing.T) {
	t.Setenv(RestoreTimeoutEnv, "45s")
	if got := RestoreTimeout(); got != 45*time.Second {
		t.Fatalf("expected 45s, got %v", got)
	}
}

func TestRestoreTimeoutSecondsNumber(t *testing.T) {
	t.Setenv(RestoreTimeoutEnv, "9")
	if got := RestoreTimeout(); got != 9*time.Second {
		t.Fatalf("expected 9s, got %v", got)
	}
}

func TestRestoreTimeoutInvalid(t *testing.T) {
	for _, raw := range []string{"nope", "-3", "0s"} {
		t.Setenv(RestoreTimeoutEnv, raw)
		if got := RestoreTimeout(); got != 2*time.Minute {
			t.Fatalf("RestoreTimeout(%q) = %v, want default", raw, got)
		}
	}
}

func TestFreshConfigEnabled(t *testing.T) {
	t.Setenv(FreshConfigEnv, "off")
	if FreshConfigEnabled() {
		t.Fatalf("expected off to disable fresh config")
	}
	t.Setenv(FreshConfigEnv, "1")
	if !FreshConfigEnabled() {
		t.Fatalf("expected 1 to enable fresh config")
	}
}

func TestHostLowercases(t *testing.T) {
	t.Setenv(HostEnv, " Memory ")
	if got := Host(); got != "memory" {
		t.Fatalf("Host() = %q", got)
	}
}
