package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/regenrek/panelctx/internal/limits"
)

var includePayloads atomic.Bool

func setIncludePayloads(v bool) {
	includePayloads.Store(v)
}

func IncludePayloads() bool {
	return includePayloads.Load()
}

// CommandAttr logs a command line sent to a pane. Commands are redacted to a
// length and hash unless payload logging is enabled, and sanitized either way.
func CommandAttr(key, command string) slog.Attr {
	if key == "" {
		key = "command"
	}
	return textAttr(key, command)
}

// PayloadAttr is CommandAttr for raw input bytes.
func PayloadAttr(key string, payload []byte) slog.Attr {
	if key == "" {
		key = "payload"
	}
	return textAttr(key, string(payload))
}

func textAttr(key, command string) slog.Attr {
	if command == "" {
		return slog.String(key, `""`)
	}
	if !IncludePayloads() {
		return slog.String(key, redact([]byte(command)))
	}
	const preview = 256
	clean := SanitizeCommand(command)
	if len(clean) <= preview {
		return slog.String(key, clean)
	}
	return slog.String(key, fmt.Sprintf("%s...(+%d bytes)", clean[:preview], len(clean)-preview))
}

func redact(payload []byte) string {
	inspected := payload
	if limit := limits.PayloadInspectLimit; limit > 0 && len(inspected) > limit {
		inspected = inspected[:limit]
	}
	sum := sha256.Sum256(inspected)
	return fmt.Sprintf("redacted(len=%d sha256_prefix=%s prefix_len=%d)",
		len(payload), hex.EncodeToString(sum[:6]), len(inspected))
}
