package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Sink string

const (
	SinkStderr Sink = "stderr"
	SinkFile   Sink = "file"
	SinkNone   Sink = "none"
)

const (
	EnvLogLevel           = "PANELCTX_LOG_LEVEL"
	EnvLogFormat          = "PANELCTX_LOG_FORMAT"
	EnvLogSink            = "PANELCTX_LOG_SINK"
	EnvLogFile            = "PANELCTX_LOG_FILE"
	EnvLogAddSource       = "PANELCTX_LOG_ADD_SOURCE"
	EnvLogIncludePayloads = "PANELCTX_LOG_INCLUDE_PAYLOADS"
	EnvLogMaxSizeMB       = "PANELCTX_LOG_MAX_SIZE_MB"
	EnvLogMaxBackups      = "PANELCTX_LOG_MAX_BACKUPS"
	EnvLogMaxAgeDays      = "PANELCTX_LOG_MAX_AGE_DAYS"
	EnvLogCompress        = "PANELCTX_LOG_COMPRESS"
)

// Config is the logging section of config.yml. Nil fields fall back to the
// defaults for the active Mode.
type Config struct {
	Level           *string `yaml:"level,omitempty"`
	Format          *string `yaml:"format,omitempty"`
	Sink            *string `yaml:"sink,omitempty"`
	File            *string `yaml:"file,omitempty"`
	AddSource       *bool   `yaml:"add_source,omitempty"`
	IncludePayloads *bool   `yaml:"include_payloads,omitempty"`

	MaxSizeMB  *int  `yaml:"max_size_mb,omitempty"`
	MaxBackups *int  `yaml:"max_backups,omitempty"`
	MaxAgeDays *int  `yaml:"max_age_days,omitempty"`
	Compress   *bool `yaml:"compress,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// DefaultConfig is quiet for one-shot commands and writes JSON to the rotating
// file when watching.
func DefaultConfig(mode Mode) Config {
	cfg := Config{
		Level:           ptr("error"),
		Format:          ptr(string(FormatText)),
		Sink:            ptr(string(SinkStderr)),
		AddSource:       ptr(false),
		IncludePayloads: ptr(false),
		MaxSizeMB:       ptr(10),
		MaxBackups:      ptr(3),
		MaxAgeDays:      ptr(14),
		Compress:        ptr(true),
	}
	if mode == ModeWatch {
		cfg.Level = ptr("info")
		cfg.Format = ptr(string(FormatJSON))
		cfg.Sink = ptr(string(SinkFile))
	}
	return cfg
}

// Merge overlays every non-nil field of override onto c.
func (c Config) Merge(override Config) Config {
	pick := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	pickBool := func(dst **bool, src *bool) {
		if src != nil {
			*dst = src
		}
	}
	pickInt := func(dst **int, src *int) {
		if src != nil {
			*dst = src
		}
	}
	pick(&c.Level, override.Level)
	pick(&c.Format, override.Format)
	pick(&c.Sink, override.Sink)
	pick(&c.File, override.File)
	pickBool(&c.AddSource, override.AddSource)
	pickBool(&c.IncludePayloads, override.IncludePayloads)
	pickInt(&c.MaxSizeMB, override.MaxSizeMB)
	pickInt(&c.MaxBackups, override.MaxBackups)
	pickInt(&c.MaxAgeDays, override.MaxAgeDays)
	pickBool(&c.Compress, override.Compress)
	return c
}

// WithEnv applies PANELCTX_LOG_* overrides. Unparseable numbers are ignored.
func (c Config) WithEnv() Config {
	var env Config
	if v := lookup(EnvLogLevel); v != "" {
		env.Level = ptr(v)
	}
	if v := lookup(EnvLogFormat); v != "" {
		env.Format = ptr(v)
	}
	if v := lookup(EnvLogSink); v != "" {
		env.Sink = ptr(v)
	}
	if v := lookup(EnvLogFile); v != "" {
		env.File = ptr(v)
	}
	env.AddSource = lookupBool(EnvLogAddSource)
	env.IncludePayloads = lookupBool(EnvLogIncludePayloads)
	env.Compress = lookupBool(EnvLogCompress)
	env.MaxSizeMB = lookupInt(EnvLogMaxSizeMB)
	env.MaxBackups = lookupInt(EnvLogMaxBackups)
	env.MaxAgeDays = lookupInt(EnvLogMaxAgeDays)
	return c.Merge(env)
}

func lookup(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func lookupBool(name string) *bool {
	raw := lookup(name)
	if raw == "" {
		return nil
	}
	return ptr(!isDisabledString(raw))
}

func lookupInt(name string) *int {
	raw := lookup(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// Normalize lower-cases enums, drops blank strings and clamps negative
// rotation values to zero, then validates.
func (c Config) Normalize() (Config, error) {
	lower := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.ToLower(strings.TrimSpace(*s))
		if v == "" {
			return nil
		}
		return &v
	}
	clamp := func(n *int) *int {
		if n != nil && *n < 0 {
			return ptr(0)
		}
		return n
	}
	c.Level = lower(c.Level)
	c.Format = lower(c.Format)
	c.Sink = lower(c.Sink)
	if c.File != nil {
		if v := strings.TrimSpace(*c.File); v == "" {
			c.File = nil
		} else {
			c.File = &v
		}
	}
	c.MaxSizeMB = clamp(c.MaxSizeMB)
	c.MaxBackups = clamp(c.MaxBackups)
	c.MaxAgeDays = clamp(c.MaxAgeDays)
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.Level != nil {
		switch *c.Level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.level: invalid %q", *c.Level)
		}
	}
	if c.Format != nil {
		switch Format(*c.Format) {
		case FormatText, FormatJSON:
		default:
			return fmt.Errorf("logging.format: invalid %q", *c.Format)
		}
	}
	if c.Sink != nil {
		switch Sink(*c.Sink) {
		case SinkStderr, SinkFile, SinkNone:
		default:
			return fmt.Errorf("logging.sink: invalid %q", *c.Sink)
		}
	}
	return nil
}

func isDisabledString(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "false", "no", "off":
		return true
	default:
		return false
	}
}
