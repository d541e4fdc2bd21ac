package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/logging"
	"github.com/regenrek/panelctx/internal/navigator"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/reconcile"
)

// Load reads the store into the model as closed panels and adopts panes that
// already carry a panel label. On a load error the model is left untouched.
func (c *Controller) Load(ctx context.Context) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	records, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn("controller: store load failed", slog.String("path", c.store.Path()), slog.Any("err", err))
		return 0, err
	}
	added, err := call(ctx, c, func() (int, error) {
		added := 0
		for _, rec := range records {
			if _, exists := c.panels.ByName(rec.Name); exists {
				continue
			}
			if _, err := c.panels.Add(panelFromRecord(rec.Name, rec.Location, rec.Commands), panel.ValidateOptions{}); err != nil {
				c.log.Warn("controller: skip stored panel", slog.String("panel", rec.Name), slog.Any("err", err))
				continue
			}
			added++
		}
		c.rememberStored(records)
		return added, nil
	})
	if err != nil {
		return 0, err
	}
	if n, err := c.rec.Adopt(ctx); err != nil {
		c.log.Warn("controller: adopt panes failed", slog.Any("err", err))
	} else if n > 0 {
		c.log.Info("controller: adopted live panes", slog.Int("panels", n))
	}
	return added, nil
}

func panelFromRecord(name string, loc panel.Location, cmds []string) panel.Panel {
	return panel.Panel{Name: name, Location: loc.Clone(), Commands: slices.Clone(cmds), Status: panel.StatusClosed}
}

// Create registers a panel, creates its pane and replays its commands. On
// failure nothing is registered and any created pane is closed.
func (c *Controller) Create(ctx context.Context, name string, loc panel.Location, commands []string) (panel.Panel, error) {
	added, err := call(ctx, c, func() (panel.ID, error) {
		p, err := c.panels.Add(panel.Panel{
			Name:     name,
			Location: loc,
			Commands: commands,
			Status:   panel.StatusPending,
		}, panel.ValidateOptions{})
		if err != nil {
			return "", err
		}
		return p.ID, nil
	})
	if err != nil {
		return panel.Panel{}, err
	}
	res, err := c.rec.Materialize(ctx, added)
	if err == nil && !res.OK() {
		err = res.Err
	}
	if err != nil {
		_ = c.do(context.WithoutCancel(ctx), func() { c.panels.Remove(added) })
		return panel.Panel{}, err
	}
	c.log.Info("controller: panel created",
		slog.String("panel", name),
		slog.String("pane", string(res.Pane)),
		slog.Int("commands", len(commands)))
	c.persist.MarkDirty()
	return c.get(ctx, added)
}

func (c *Controller) get(ctx context.Context, id panel.ID) (panel.Panel, error) {
	return call(ctx, c, func() (panel.Panel, error) {
		p, ok := c.panels.Get(id)
		if !ok {
			return panel.Panel{}, fmt.Errorf("%w: %s", panel.ErrNotFound, id)
		}
		return p.Clone(), nil
	})
}

// Rename changes the name of id. The live pane and commands are untouched
// apart from the pane label.
func (c *Controller) Rename(ctx context.Context, id panel.ID, name string) error {
	pane, err := call(ctx, c, func() (host.PaneID, error) {
		p, ok := c.panels.Get(id)
		if !ok {
			return "", fmt.Errorf("%w: %s", panel.ErrNotFound, id)
		}
		old := p.Name
		if err := c.panels.Rename(id, name); err != nil {
			return "", err
		}
		if old != name {
			c.nav.Rename(old, name)
			c.persist.MarkDirty()
		}
		return p.LiveRef, nil
	})
	if err != nil {
		return err
	}
	if pane != "" {
		if err := c.host.SetLabel(ctx, pane, name); err != nil {
			c.log.Warn("controller: relabel pane failed", slog.String("pane", string(pane)), slog.Any("err", err))
		}
	}
	return nil
}

// UpdateCommands replaces the command list of id. A live pane does not
// re-run them.
func (c *Controller) UpdateCommands(ctx context.Context, id panel.ID, commands []string) error {
	if err := panel.ValidateCommands(commands); err != nil {
		return err
	}
	return c.mutate(ctx, id, func(p *panel.Panel) {
		p.Commands = slices.Clone(commands)
		for i, cmd := range commands {
			c.log.Debug("controller: command set", slog.String("panel", p.Name), slog.Int("index", i), logging.CommandAttr("command", cmd))
		}
	})
}

func (c *Controller) mutate(ctx context.Context, id panel.ID, fn func(*panel.Panel)) error {
	_, err := call(ctx, c, func() (struct{}, error) {
		p, ok := c.panels.Get(id)
		if !ok {
			return struct{}{}, fmt.Errorf("%w: %s", panel.ErrNotFound, id)
		}
		fn(p)
		c.persist.MarkDirty()
		return struct{}{}, nil
	})
	return err
}

// Delete removes id from the store and the model and closes its pane. The
// store is written before the model changes, so a failed write leaves the
// panel in place.
func (c *Controller) Delete(ctx context.Context, id panel.ID) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.get(ctx, id); err != nil {
		return err
	}
	c.persist.saveMu.Lock()
	defer c.persist.saveMu.Unlock()
	if err := c.persist.saveLocked(ctx, id); err != nil {
		return err
	}
	removed, err := call(ctx, c, func() (panel.Panel, error) {
		p, ok := c.panels.Remove(id)
		if !ok {
			return panel.Panel{}, fmt.Errorf("%w: %s", panel.ErrNotFound, id)
		}
		c.nav.Remove(p.Name)
		return p, nil
	})
	if err != nil {
		return err
	}
	c.log.Info("controller: panel deleted", slog.String("panel", removed.Name))
	if removed.LiveRef == "" {
		return nil
	}
	if err := c.host.ClosePane(ctx, removed.LiveRef); err != nil && !errors.Is(err, host.ErrPaneNotFound) {
		c.log.Warn("controller: close pane failed", slog.String("pane", string(removed.LiveRef)), slog.Any("err", err))
	}
	return nil
}

// Persist writes the whole model now.
func (c *Controller) Persist(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.persist.consumeDirty()
	return c.persist.Save(ctx, "")
}

// Restore flushes pending changes and restores every stored panel that is
// not live. Store errors abort; per-panel failures are in the report.
func (c *Controller) Restore(ctx context.Context) (reconcile.Report, error) {
	if err := c.ready(); err != nil {
		return reconcile.Report{}, err
	}
	if err := c.persist.Flush(ctx); err != nil {
		return reconcile.Report{}, err
	}
	records, err := c.store.Load(ctx)
	if err != nil {
		return reconcile.Report{}, err
	}
	report, err := c.rec.Restore(ctx, records)
	if err != nil {
		return reconcile.Report{}, c.mapErr(err)
	}
	return report, nil
}

// NavigateTo focuses the live panel best matching query.
func (c *Controller) NavigateTo(ctx context.Context, query string) (navigator.Entry, error) {
	return c.focus(ctx, func() (navigator.Entry, error) { return c.nav.Resolve(query) })
}

func (c *Controller) CycleNext(ctx context.Context) (navigator.Entry, error) {
	return c.focus(ctx, func() (navigator.Entry, error) { return c.nav.Cycle(1) })
}

func (c *Controller) CyclePrev(ctx context.Context) (navigator.Entry, error) {
	return c.focus(ctx, func() (navigator.Entry, error) { return c.nav.Cycle(-1) })
}

func (c *Controller) focus(ctx context.Context, pick func() (navigator.Entry, error)) (navigator.Entry, error) {
	type picked struct {
		entry navigator.Entry
		prev  host.PaneID
	}
	got, err := call(ctx, c, func() (picked, error) {
		entry, err := pick()
		if err != nil {
			return picked{}, err
		}
		prev := c.nav.Focused()
		c.nav.FocusRequested(entry.Pane)
		return picked{entry: entry, prev: prev}, nil
	})
	if err != nil {
		return navigator.Entry{}, err
	}
	if err := c.host.Focus(ctx, got.entry.Pane); err != nil {
		_ = c.do(context.WithoutCancel(ctx), func() { c.nav.FocusCancelled(got.entry.Pane, got.prev) })
		return navigator.Entry{}, fmt.Errorf("controller: focus %s: %w", got.entry.Name, err)
	}
	return got.entry, nil
}

// Panels returns every panel in creation order.
func (c *Controller) Panels(ctx context.Context) ([]panel.Panel, error) {
	return call(ctx, c, func() ([]panel.Panel, error) { return c.panels.Snapshot(), nil })
}

// Find returns the panel named name.
func (c *Controller) Find(ctx context.Context, name string) (panel.Panel, error) {
	return call(ctx, c, func() (panel.Panel, error) {
		p, ok := c.panels.ByName(name)
		if !ok {
			return panel.Panel{}, fmt.Errorf("%w: %q", panel.ErrNotFound, name)
		}
		return p.Clone(), nil
	})
}
