package tmuxhost

import (
	"context"
	"log/slog"
	"time"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/logging"
)

// Events starts the poller on first use. tmux has no push notifications for
// layout changes, so events are derived by diffing list-panes snapshots.
func (c *Client) Events() <-chan host.Event {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.pollLoop()
	})
	return c.events
}

// Close stops the poller and closes the event channel.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	return nil
}

func (c *Client) pollLoop() {
	defer c.wg.Done()
	defer close(c.events)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	var prev []paneRow
	primed := false
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		rows, err := c.listPanes(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.LogEvery(ctx, "tmuxhost.poll", time.Minute, slog.LevelWarn,
				"tmuxhost: list-panes failed", slog.Any("err", err))
		} else {
			if primed {
				for _, ev := range diffRows(prev, rows) {
					select {
					case c.events <- ev:
					case <-c.stop:
						return
					}
				}
			}
			prev, primed = rows, true
		}
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
	}
}

// diffRows turns two snapshots into events: closed panes first, then new
// panes, then moves of surviving panes, then a focus change.
func diffRows(prev, next []paneRow) []host.Event {
	before := map[host.PaneID]paneRow{}
	windowsBefore := map[string]bool{}
	for _, r := range prev {
		before[r.info.ID] = r
		windowsBefore[r.info.Location.Window+":"+r.info.Location.Tab] = true
	}
	after := map[host.PaneID]paneRow{}
	for _, r := range next {
		after[r.info.ID] = r
	}

	var changed []host.PaneInfo
	for _, r := range next {
		old, ok := before[r.info.ID]
		if !ok || !old.info.Location.Equal(r.info.Location) {
			changed = append(changed, r.info)
		}
	}

	var out []host.Event
	for _, r := range prev {
		if _, ok := after[r.info.ID]; !ok {
			out = append(out, host.Event{Kind: host.EventClosed, Pane: r.info.ID, Location: r.info.Location, Affected: changed})
		}
	}
	created := false
	for _, r := range next {
		if _, ok := before[r.info.ID]; ok {
			continue
		}
		kind := host.EventCreated
		if windowsBefore[r.info.Location.Window+":"+r.info.Location.Tab] {
			kind = host.EventSplit
		}
		out = append(out, host.Event{Kind: kind, Pane: r.info.ID, Location: r.info.Location, Affected: changed})
		created = true
	}
	if !created && len(out) == 0 && len(changed) > 0 {
		out = append(out, host.Event{Kind: host.EventMoved, Pane: changed[0].ID, Location: changed[0].Location, Affected: changed})
	}
	var prevFocus, nextFocus host.PaneID
	for _, r := range prev {
		if r.focused {
			prevFocus = r.info.ID
		}
	}
	for _, r := range next {
		if r.focused {
			nextFocus = r.info.ID
		}
	}
	if nextFocus != "" && nextFocus != prevFocus {
		out = append(out, host.Event{Kind: host.EventFocused, Pane: nextFocus, Location: after[nextFocus].info.Location})
	}
	return out
}
