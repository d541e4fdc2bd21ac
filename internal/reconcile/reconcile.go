// Package reconcile maps panel records onto the live pane tree (restore mode)
// and keeps panel locations in step with host events (sync mode).
//
// The panel set and navigator handed to New are owned by the control loop.
// The reconciler touches them only from loop closures and calls the host only
// from its own goroutines.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/regenrek/panelctx/internal/ctlloop"
	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/navigator"
	"github.com/regenrek/panelctx/internal/panel"
)

const (
	defaultShellReadyTimeout = 5 * time.Second
	defaultCommandTimeout    = 2 * time.Second
	closeTimeout             = 5 * time.Second
)

// State is a step of the per-panel replay machine.
type State string

const (
	StateCreating   State = "creating"
	StateSpawning   State = "spawning"
	StateShellReady State = "shell-ready"
	StateSending    State = "sending"
	StateAccepted   State = "accepted"
	StateIdle       State = "idle"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Transition is reported on the control loop for every state change.
// Command is the zero-based command index for sending and accepted.
type Transition struct {
	Panel   panel.ID
	Name    string
	Pane    host.PaneID
	State   State
	Command int
}

type Options struct {
	// Parallel bounds concurrent replays. Values below 1 mean 1.
	Parallel          int
	ShellReadyTimeout time.Duration
	CommandTimeout    time.Duration
	Logger            *slog.Logger
	// OnChange runs on the loop after a persisted field of a panel changed.
	OnChange func()
	// OnTransition runs on the loop for each replay state change.
	OnTransition func(Transition)
}

type flight struct {
	cancel context.CancelCauseFunc
	closed bool
}

type Reconciler struct {
	loop   *ctlloop.Loop
	host   host.Host
	panels *panel.Set
	nav    *navigator.Navigator
	opts   Options
	log    *slog.Logger

	// inflight maps panes under replay to their cancel func. Loop-owned.
	inflight map[host.PaneID]*flight
}

func New(loop *ctlloop.Loop, h host.Host, panels *panel.Set, nav *navigator.Navigator, opts Options) *Reconciler {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.ShellReadyTimeout <= 0 {
		opts.ShellReadyTimeout = defaultShellReadyTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		loop:     loop,
		host:     h,
		panels:   panels,
		nav:      nav,
		opts:     opts,
		log:      log,
		inflight: map[host.PaneID]*flight{},
	}
}

func (r *Reconciler) changed() {
	if r.opts.OnChange != nil {
		r.opts.OnChange()
	}
}

// HandleEvent applies a host event to the model. It must run on the loop and
// never calls the host.
func (r *Reconciler) HandleEvent(ev host.Event) {
	switch ev.Kind {
	case host.EventClosed:
		r.paneClosed(ev.Pane)
	case host.EventMoved, host.EventSplit, host.EventCreated:
		r.relocate(ev)
	case host.EventFocused:
		r.nav.FocusObserved(ev.Pane)
	}
}

func (r *Reconciler) paneClosed(pane host.PaneID) {
	if fl, ok := r.inflight[pane]; ok && !fl.closed {
		fl.closed = true
		fl.cancel(errPaneClosed)
	}
	p, ok := r.panels.ByPane(pane)
	if !ok {
		return
	}
	r.panels.Unbind(p.ID, panel.StatusClosed)
	r.nav.Remove(p.Name)
	r.log.Info("reconcile: panel closed", slog.String("panel", p.Name), slog.String("pane", string(pane)))
}

func (r *Reconciler) relocate(ev host.Event) {
	updates := ev.Affected
	if ev.Pane != "" && !ev.Location.IsEmpty() {
		if _, listed := host.ByID(updates, ev.Pane); !listed {
			updates = append(updates, host.PaneInfo{ID: ev.Pane, Location: ev.Location})
		}
	}
	dirty := false
	for _, info := range updates {
		p, ok := r.panels.ByPane(info.ID)
		if !ok || p.Location.Equal(info.Location) {
			continue
		}
		r.log.Debug("reconcile: panel moved",
			slog.String("panel", p.Name),
			slog.String("from", p.Location.String()),
			slog.String("to", info.Location.String()))
		p.Location = info.Location.Clone()
		dirty = true
	}
	if dirty {
		r.changed()
	}
}

// Adopt binds closed or failed panels to existing panes that carry their
// label and records the focused pane. No commands are replayed. It returns
// the number of panels bound.
func (r *Reconciler) Adopt(ctx context.Context) (int, error) {
	panes, err := r.host.Panes(ctx)
	if err != nil {
		return 0, err
	}
	return ctlloop.Call(ctx, r.loop, func() (int, error) {
		n := 0
		for _, info := range panes {
			if info.Focused {
				r.nav.SetFocused(info.ID)
			}
			if info.Label == "" {
				continue
			}
			if _, bound := r.panels.ByPane(info.ID); bound {
				continue
			}
			p, ok := r.panels.ByName(info.Label)
			if !ok || p.IsLive() || p.Status == panel.StatusPending {
				continue
			}
			if r.bind(p, info.ID, info.Location) == nil {
				n++
			}
		}
		return n, nil
	})
}

// bind marks p live on pane and registers it with the navigator. Loop only.
func (r *Reconciler) bind(p *panel.Panel, pane host.PaneID, loc panel.Location) error {
	if err := r.panels.Bind(p.ID, pane); err != nil {
		return err
	}
	if !loc.IsEmpty() && !p.Location.Equal(loc) {
		p.Location = loc.Clone()
		r.changed()
	}
	r.nav.Put(p.Name, pane)
	return nil
}
