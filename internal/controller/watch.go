package controller

import (
	"context"
	"log/slog"
	"slices"

	"github.com/regenrek/panelctx/internal/panel"
)

// MergeResult counts the model changes applied from the store.
type MergeResult struct {
	Added   int
	Updated int
	Removed int
}

func (m MergeResult) Changed() bool {
	return m.Added+m.Updated+m.Removed > 0
}

// Merge re-reads the store after another process changed it. Stored panels
// are added, stored command lists replace the model's, and panels that were
// stored before but are missing now are dropped. Locations of live panels are
// kept; the pane tree owns them.
func (c *Controller) Merge(ctx context.Context) (MergeResult, error) {
	if err := c.ready(); err != nil {
		return MergeResult{}, err
	}
	records, err := c.store.Load(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	res, err := call(ctx, c, func() (MergeResult, error) {
		var res MergeResult
		stored := map[string]bool{}
		for _, rec := range records {
			stored[rec.Name] = true
			p, ok := c.panels.ByName(rec.Name)
			if !ok {
				if _, err := c.panels.Add(panelFromRecord(rec.Name, rec.Location, rec.Commands), panel.ValidateOptions{}); err == nil {
					res.Added++
				}
				continue
			}
			changed := false
			if !slices.Equal(p.Commands, rec.Commands) {
				p.Commands = slices.Clone(rec.Commands)
				changed = true
			}
			if !p.IsLive() && !p.Location.Equal(rec.Location) {
				p.Location = rec.Location.Clone()
				changed = true
			}
			if changed {
				res.Updated++
			}
		}
		var gone []panel.ID
		c.panels.Each(func(p *panel.Panel) bool {
			if c.stored.Has(p.Name) && !stored[p.Name] && p.Status != panel.StatusPending {
				gone = append(gone, p.ID)
			}
			return true
		})
		for _, id := range gone {
			if p, ok := c.panels.Remove(id); ok {
				c.nav.Remove(p.Name)
				res.Removed++
			}
		}
		c.rememberStored(records)
		return res, nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	if res.Changed() {
		c.log.Info("controller: merged store changes",
			slog.Int("added", res.Added),
			slog.Int("updated", res.Updated),
			slog.Int("removed", res.Removed))
		if _, err := c.rec.Adopt(ctx); err != nil {
			c.log.Warn("controller: adopt panes failed", slog.Any("err", err))
		}
	}
	return res, nil
}

// Watch merges external store changes until ctx ends. Merge errors are
// logged and watching continues.
func (c *Controller) Watch(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	changes, err := c.store.Watch(ctx)
	if err != nil {
		return err
	}
	for range changes {
		if _, err := c.Merge(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("controller: merge failed", slog.Any("err", err))
		}
	}
	return nil
}
