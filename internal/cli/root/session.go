package root

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/regenrek/panelctx/internal/config"
	"github.com/regenrek/panelctx/internal/controller"
	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/host/memhost"
	"github.com/regenrek/panelctx/internal/host/tmuxhost"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/panelstore"
	"github.com/regenrek/panelctx/internal/reconcile"
)

// SessionOptions come from the global flags of one invocation.
type SessionOptions struct {
	ConfigPath string
	// Host overrides host.type from the config file.
	Host string
	// Watch turns on the background persistence worker.
	Watch bool
}

// Opener builds a started Session. Tests swap it for an in-memory host.
type Opener func(ctx context.Context, opts SessionOptions) (*Session, error)

// Session is a started controller over the configured host and store.
type Session struct {
	Config     config.Config
	Controller *controller.Controller
	Host       host.Host
	// LoadErr is the store failure the session carried on past, if any.
	LoadErr error

	closeHost func() error
}

// OpenSession loads the config, connects the host and starts a controller on
// the store. A corrupt or newer store is reported in LoadErr, not returned.
func OpenSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	h, closeHost, err := openHost(cfg)
	if err != nil {
		return nil, err
	}
	store, err := panelstore.New(cfg.Store.Path)
	if err != nil {
		_ = closeHost()
		return nil, err
	}
	sess, err := StartSession(ctx, cfg, h, store, opts.Watch)
	if err != nil {
		_ = closeHost()
		return nil, err
	}
	sess.closeHost = closeHost
	return sess, nil
}

// LoadConfig reads and normalizes the config named by opts, or the default one.
func LoadConfig(opts SessionOptions) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return config.Config{}, err
	}
	cfg, err = cfg.Normalized()
	if err != nil {
		return config.Config{}, err
	}
	if override := strings.ToLower(strings.TrimSpace(opts.Host)); override != "" {
		switch override {
		case config.HostTmux, config.HostMemory:
			cfg.Host.Type = override
		default:
			return config.Config{}, fmt.Errorf("invalid host %q (allowed: %s, %s)", opts.Host, config.HostTmux, config.HostMemory)
		}
	}
	return cfg, nil
}

func openHost(cfg config.Config) (host.Host, func() error, error) {
	if cfg.Host.Type == config.HostMemory {
		h := memhost.New()
		return h, h.Close, nil
	}
	c, err := tmuxhost.New(tmuxhost.Options{
		Bin:               cfg.Host.Tmux.Bin,
		DefaultWindow:     cfg.Host.Tmux.DefaultWindow,
		PollInterval:      cfg.Host.Tmux.PollInterval(),
		ShellReadyTimeout: cfg.Restore.ShellReadyTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// StartSession starts a controller on h and store and loads the store.
func StartSession(ctx context.Context, cfg config.Config, h host.Host, store *panelstore.Store, watch bool) (*Session, error) {
	ctl, err := controller.New(controller.Options{
		Host:     h,
		Store:    store,
		Autosave: watch && cfg.AutosaveEnabled(),
		Fuzzy:    cfg.FuzzyEnabled(),
		Restore: reconcile.Options{
			Parallel:          cfg.Restore.Parallel,
			ShellReadyTimeout: cfg.Restore.ShellReadyTimeout(),
			CommandTimeout:    cfg.Restore.CommandTimeout(),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := ctl.Start(ctx); err != nil {
		return nil, err
	}
	sess := &Session{Config: cfg, Controller: ctl, Host: h}
	if _, err := ctl.Load(ctx); err != nil {
		if !errors.Is(err, panel.ErrStoreCorrupt) && !errors.Is(err, panel.ErrUnsupportedVersion) {
			_ = ctl.Close(context.WithoutCancel(ctx))
			return nil, err
		}
		slog.Warn("continuing with an empty panel set", slog.String("store", store.Path()), slog.Any("err", err))
		sess.LoadErr = err
	}
	return sess, nil
}

// Close persists pending changes and disconnects the host.
func (s *Session) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Controller != nil {
		errs = append(errs, s.Controller.Close(ctx))
	}
	if s.closeHost != nil {
		errs = append(errs, s.closeHost())
	}
	return errors.Join(errs...)
}

// Flush writes the model to the store now so a failure reaches the caller
// before any output is printed.
func (s *Session) Flush(ctx context.Context) error {
	return s.Controller.Persist(ctx)
}
