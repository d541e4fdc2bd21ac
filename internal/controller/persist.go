package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/regenrek/panelctx/internal/ctlloop"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/panelstore"
)

const defaultFlushDelay = 250 * time.Millisecond

// persister coalesces dirty marks into background saves. saveMu orders
// snapshot and write pairs so an older snapshot never lands after a newer one.
type persister struct {
	c     *Controller
	delay time.Duration

	mu      sync.Mutex
	dirty   bool
	lastErr error
	wake    chan struct{}

	saveMu sync.Mutex
}

func newPersister(c *Controller, delay time.Duration) *persister {
	if delay <= 0 {
		delay = defaultFlushDelay
	}
	return &persister{c: c, delay: delay, wake: make(chan struct{}, 1)}
}

// MarkDirty is safe to call from the loop; it never blocks.
func (p *persister) MarkDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) consumeDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	was := p.dirty
	p.dirty = false
	return was
}

func (p *persister) isDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *persister) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *persister) setLastError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// run flushes after each burst of dirty marks until ctx ends.
func (p *persister) run(ctx context.Context) {
	timer := time.NewTimer(p.delay)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			timer.Reset(p.delay)
		case <-timer.C:
			if err := p.Flush(ctx); err != nil {
				p.c.log.Warn("controller: autosave failed", slog.Any("err", err))
			}
		}
	}
}

// Flush saves when the model is dirty.
func (p *persister) Flush(ctx context.Context) error {
	if !p.consumeDirty() {
		return nil
	}
	return p.Save(ctx, "")
}

// Save writes every panel except skip. Store errors are kept, not retried.
func (p *persister) Save(ctx context.Context, skip panel.ID) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.saveLocked(ctx, skip)
}

func (p *persister) saveLocked(ctx context.Context, skip panel.ID) error {
	records, err := ctlloop.Call(ctx, p.c.loop, func() ([]panelstore.Record, error) {
		return p.c.records(skip), nil
	})
	if err != nil {
		return p.c.mapErr(err)
	}
	err = p.c.store.Save(ctx, records)
	p.setLastError(err)
	if err != nil {
		return err
	}
	p.c.log.Debug("controller: store saved", slog.Int("panels", len(records)))
	p.c.loop.Post(func() { p.c.rememberStored(records) })
	return nil
}
