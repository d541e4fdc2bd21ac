package memhost

import (
	"github.com/regenrek/panelctx/internal/host"
)

// emit queues an event carrying every pane whose location changed since the
// previous event. Callers hold h.mu.
func (h *Host) emit(kind host.EventKind, subject host.PaneID) {
	now := h.locationsLocked()
	loc, live := now[subject]
	if !live {
		loc = h.locs[subject]
	}
	ev := host.Event{Kind: kind, Pane: subject, Location: loc}
	for _, info := range h.snapshot() {
		prev, had := h.locs[info.ID]
		if !had || !prev.Equal(info.Location) {
			ev.Affected = append(ev.Affected, info)
		}
	}
	h.locs = now
	if h.closed {
		return
	}
	if len(h.queue) >= maxQueuedEvents {
		h.queue = h.queue[1:]
	}
	h.queue = append(h.queue, ev)
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Events starts the delivery pump on first use. Close stops it.
func (h *Host) Events() <-chan host.Event {
	h.pumpOnce.Do(func() {
		h.wg.Add(1)
		go h.pump()
	})
	return h.events
}

func (h *Host) pump() {
	defer h.wg.Done()
	defer close(h.events)
	for {
		h.mu.Lock()
		var next *host.Event
		if len(h.queue) > 0 {
			ev := h.queue[0]
			h.queue = h.queue[1:]
			next = &ev
		}
		h.mu.Unlock()
		if next == nil {
			select {
			case <-h.wake:
				continue
			case <-h.done:
				return
			}
		}
		select {
		case h.events <- *next:
		case <-h.done:
			return
		}
	}
}

// Close stops event delivery and waits for the pump to exit.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	close(h.done)
	h.wg.Wait()
	return nil
}
