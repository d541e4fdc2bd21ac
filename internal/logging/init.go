package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/regenrek/panelctx/internal/appdirs"
	"github.com/regenrek/panelctx/internal/identity"
)

type InitOptions struct {
	App     string
	Version string
	Mode    Mode
}

// Init installs the process-wide slog default and returns a closer for the
// file sink. Precedence is mode defaults, then cfg, then environment.
func Init(cfg Config, opts InitOptions) (func() error, error) {
	if opts.App == "" {
		opts.App = identity.AppSlug
	}
	if opts.Mode == 0 {
		opts.Mode = ModeCLI
	}
	normalized, err := DefaultConfig(opts.Mode).Merge(cfg).WithEnv().Normalize()
	if err != nil {
		return nil, err
	}
	logger, closeFn, err := New(normalized, opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	setIncludePayloads(normalized.IncludePayloads != nil && *normalized.IncludePayloads)
	return closeFn, nil
}

// New builds a logger from an already normalized Config.
func New(cfg Config, opts InitOptions) (*slog.Logger, func() error, error) {
	writer, closeFn, err := resolveWriter(cfg)
	if err != nil {
		return nil, nil, err
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource != nil && *cfg.AddSource,
	}
	var handler slog.Handler
	if cfg.Format != nil && Format(*cfg.Format) == FormatJSON {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}
	logger := slog.New(handler).With(
		slog.String("app", opts.App),
		slog.String("version", opts.Version),
		slog.String("mode", opts.Mode.String()),
	)
	return logger, closeFn, nil
}

func parseLevel(value *string) slog.Leveler {
	if value == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(*value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func noopClose() error { return nil }

func resolveWriter(cfg Config) (io.Writer, func() error, error) {
	sink := SinkStderr
	if cfg.Sink != nil {
		sink = Sink(*cfg.Sink)
	}
	switch sink {
	case SinkNone:
		return io.Discard, noopClose, nil
	case SinkStderr:
		return os.Stderr, noopClose, nil
	case SinkFile:
		path, err := logFilePath(cfg)
		if err != nil {
			return nil, nil, err
		}
		rot := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    derefInt(cfg.MaxSizeMB, 10),
			MaxBackups: derefInt(cfg.MaxBackups, 3),
			MaxAge:     derefInt(cfg.MaxAgeDays, 14),
			Compress:   cfg.Compress == nil || *cfg.Compress,
		}
		return rot, rot.Close, nil
	default:
		return nil, nil, fmt.Errorf("logging: unknown sink %q", sink)
	}
}

func logFilePath(cfg Config) (string, error) {
	if cfg.File != nil && strings.TrimSpace(*cfg.File) != "" {
		path := strings.TrimSpace(*cfg.File)
		if dir := filepath.Dir(path); dir != "." {
			if _, err := appdirs.EnsurePrivateDir(dir, true); err != nil {
				return "", fmt.Errorf("logging: %w", err)
			}
		}
		return path, nil
	}
	dir, err := appdirs.RuntimeDir()
	if err != nil {
		return "", fmt.Errorf("logging: %w", err)
	}
	return filepath.Join(dir, identity.LogFile), nil
}

func derefInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
