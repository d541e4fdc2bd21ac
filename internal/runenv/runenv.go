package runenv

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RuntimeDirEnv     = "PANELCTX_RUNTIME_DIR"
	ConfigDirEnv      = "PANELCTX_CONFIG_DIR"
	DataDirEnv        = "PANELCTX_DATA_DIR"
	FreshConfigEnv    = "PANELCTX_FRESH_CONFIG"
	HostEnv           = "PANELCTX_HOST"
	RestoreTimeoutEnv = "PANELCTX_RESTORE_TIMEOUT"
)

func enabledEnv(name string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return false
	}
	switch strings.ToLower(value) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// FreshConfigEnabled reports whether the config file should be ignored.
func FreshConfigEnabled() bool {
	return enabledEnv(FreshConfigEnv)
}

func ConfigDir() string {
	return strings.TrimSpace(os.Getenv(ConfigDirEnv))
}

func DataDir() string {
	return strings.TrimSpace(os.Getenv(DataDirEnv))
}

func RuntimeDir() string {
	return strings.TrimSpace(os.Getenv(RuntimeDirEnv))
}

// Host returns the host override ("tmux" or "memory"), lower-cased.
func Host() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(HostEnv)))
}

// RestoreTimeout bounds a whole restore run. Accepts Go durations or whole seconds.
func RestoreTimeout() time.Duration {
	const fallback = 2 * time.Minute
	raw := strings.TrimSpace(os.Getenv(RestoreTimeoutEnv))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return fallback
		}
		return d
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
