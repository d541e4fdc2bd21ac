// Package controller is the façade over the panel model: it creates, renames
// and deletes panels, persists them and restores them onto the host.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/regenrek/panelctx/internal/ctlloop"
	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/navigator"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/panelstore"
	"github.com/regenrek/panelctx/internal/reconcile"
)

var errNotStarted = errors.New("controller: not started")

type Options struct {
	Host  host.Host
	Store *panelstore.Store
	// Autosave runs the background persistence worker.
	Autosave   bool
	FlushDelay time.Duration
	Fuzzy      bool
	Restore    reconcile.Options
	Logger     *slog.Logger
}

const (
	stateNew int32 = iota
	stateRunning
	stateClosed
)

type Controller struct {
	loop    *ctlloop.Loop
	host    host.Host
	store   *panelstore.Store
	log     *slog.Logger
	persist *persister
	rec     *reconcile.Reconciler

	// Loop-owned.
	panels *panel.Set
	nav    *navigator.Navigator
	stored panel.NameSet

	autosave  bool
	state     atomic.Int32
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func New(opts Options) (*Controller, error) {
	if opts.Host == nil {
		return nil, errors.New("controller: host is required")
	}
	if opts.Store == nil {
		return nil, errors.New("controller: store is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		loop:     ctlloop.New(),
		host:     opts.Host,
		store:    opts.Store,
		log:      log,
		panels:   panel.NewSet(),
		stored:   panel.NameSet{},
		nav:      navigator.New(navigator.Options{Fuzzy: opts.Fuzzy}),
		autosave: opts.Autosave,
	}
	c.persist = newPersister(c, opts.FlushDelay)
	ropts := opts.Restore
	ropts.Logger = log
	userChange := ropts.OnChange
	ropts.OnChange = func() {
		c.persist.MarkDirty()
		if userChange != nil {
			userChange()
		}
	}
	c.rec = reconcile.New(c.loop, c.host, c.panels, c.nav, ropts)
	return c, nil
}

// Start launches the control loop, the host event pump and, with autosave,
// the persistence worker.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateNew, stateRunning) {
		return fmt.Errorf("controller: already started")
	}
	c.loop.Start()
	if err := c.loop.Do(ctx, func() { c.nav.Init(c.liveEntries()) }); err != nil {
		return err
	}
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.wg.Add(1)
	go c.pumpEvents(workCtx)
	if c.autosave {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.persist.run(workCtx)
		}()
	}
	return nil
}

func (c *Controller) pumpEvents(ctx context.Context) {
	defer c.wg.Done()
	events := c.host.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.loop.Post(func() { c.rec.HandleEvent(ev) })
		}
	}
}

// Close stops the event pump and the worker, persists pending changes and
// stops the loop. It does not close the host.
func (c *Controller) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		wasRunning := c.state.Swap(stateClosed) == stateRunning
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		if wasRunning && c.persist.isDirty() {
			c.closeErr = c.persist.Flush(ctx)
		}
		c.loop.Stop()
		c.nav.Reset()
	})
	return c.closeErr
}

// LastPersistError returns the error of the most recent save, if it failed.
func (c *Controller) LastPersistError() error {
	return c.persist.LastError()
}

func (c *Controller) ready() error {
	switch c.state.Load() {
	case stateRunning:
		return nil
	case stateNew:
		return errNotStarted
	}
	return panel.ErrClosed
}

func (c *Controller) mapErr(err error) error {
	if errors.Is(err, ctlloop.ErrStopped) {
		return panel.ErrClosed
	}
	return err
}

func (c *Controller) do(ctx context.Context, fn func()) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.mapErr(c.loop.Do(ctx, fn))
}

func call[T any](ctx context.Context, c *Controller, fn func() (T, error)) (T, error) {
	if err := c.ready(); err != nil {
		var zero T
		return zero, err
	}
	out, err := ctlloop.Call(ctx, c.loop, fn)
	return out, c.mapErr(err)
}

// records snapshots the model for the store. Loop only.
func (c *Controller) records(skip panel.ID) []panelstore.Record {
	out := make([]panelstore.Record, 0, c.panels.Len())
	c.panels.Each(func(p *panel.Panel) bool {
		if p.ID != skip {
			out = append(out, panelstore.RecordOf(*p))
		}
		return true
	})
	return out
}

// rememberStored records which names the store holds. Loop only.
func (c *Controller) rememberStored(records []panelstore.Record) {
	c.stored = make(panel.NameSet, len(records))
	for _, rec := range records {
		c.stored[rec.Name] = struct{}{}
	}
}

func (c *Controller) liveEntries() []navigator.Entry {
	var out []navigator.Entry
	c.panels.Each(func(p *panel.Panel) bool {
		if p.IsLive() {
			out = append(out, navigator.Entry{Name: p.Name, Pane: p.LiveRef})
		}
		return true
	})
	return out
}
