package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/regenrek/panelctx/internal/ctlloop"
	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/logging"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/panelstore"
)

var errPaneClosed = errors.New("pane closed")

type job struct {
	index    int
	id       panel.ID
	name     string
	loc      panel.Location
	commands []string
	pane     host.PaneID
	result   Result
}

// Restore brings every record without a live panel back onto the host, in
// record order. Per-panel failures are collected in the report; the error is
// only set when the restore could not run at all.
func (r *Reconciler) Restore(ctx context.Context, records []panelstore.Record) (Report, error) {
	type prepared struct {
		jobs    []*job
		results []Result
		bound   map[host.PaneID]bool
	}
	prep, err := ctlloop.Call(ctx, r.loop, func() (prepared, error) {
		jobs, results := r.prepare(records)
		return prepared{jobs: jobs, results: results, bound: r.boundPanes()}, nil
	})
	if err != nil {
		return Report{}, err
	}
	r.run(ctx, prep.jobs, prep.bound, true)
	for _, j := range prep.jobs {
		prep.results[j.index] = j.result
	}
	report := Report{Results: prep.results}
	r.log.Info("reconcile: restore finished", slog.String("summary", report.Summary()))
	return report, nil
}

// Materialize creates a pane for the pending panel id and replays its
// commands. Labelled panes are not adopted.
func (r *Reconciler) Materialize(ctx context.Context, id panel.ID) (Result, error) {
	type prepared struct {
		job   *job
		bound map[host.PaneID]bool
	}
	prep, err := ctlloop.Call(ctx, r.loop, func() (prepared, error) {
		p, ok := r.panels.Get(id)
		if !ok {
			return prepared{}, fmt.Errorf("%w: %s", panel.ErrNotFound, id)
		}
		p.Status = panel.StatusPending
		return prepared{job: newJob(0, p), bound: r.boundPanes()}, nil
	})
	if err != nil {
		return Result{}, err
	}
	r.run(ctx, []*job{prep.job}, prep.bound, false)
	return prep.job.result, nil
}

func newJob(index int, p *panel.Panel) *job {
	c := p.Clone()
	return &job{
		index:    index,
		id:       c.ID,
		name:     c.Name,
		loc:      c.Location,
		commands: c.Commands,
		result:   Result{Name: c.Name},
	}
}

// prepare resolves records against the model. Loop only.
func (r *Reconciler) prepare(records []panelstore.Record) ([]*job, []Result) {
	results := make([]Result, len(records))
	var jobs []*job
	for i, rec := range records {
		results[i] = Result{Name: rec.Name}
		p, ok := r.panels.ByName(rec.Name)
		switch {
		case ok && (p.IsLive() || p.Status == panel.StatusPending):
			results[i].Outcome = OutcomeSkipped
			results[i].Pane = p.LiveRef
			continue
		case !ok:
			added, err := r.panels.Add(panel.Panel{
				Name:     rec.Name,
				Location: rec.Location,
				Commands: rec.Commands,
			}, panel.ValidateOptions{})
			if err != nil {
				results[i].Outcome = OutcomeFailed
				results[i].Err = err
				continue
			}
			p = added
		}
		p.Status = panel.StatusPending
		jobs = append(jobs, newJob(i, p))
	}
	return jobs, results
}

func (r *Reconciler) boundPanes() map[host.PaneID]bool {
	out := map[host.PaneID]bool{}
	r.panels.Each(func(p *panel.Panel) bool {
		if p.LiveRef != "" {
			out[p.LiveRef] = true
		}
		return true
	})
	return out
}

// run places jobs one at a time in order and replays them on an errgroup
// bounded by Options.Parallel.
func (r *Reconciler) run(ctx context.Context, jobs []*job, bound map[host.PaneID]bool, adopt bool) {
	panes, err := r.host.Panes(ctx)
	if err != nil {
		r.log.Warn("reconcile: list panes failed", slog.Any("err", err))
	}
	var g errgroup.Group
	g.SetLimit(r.opts.Parallel)
	for _, j := range jobs {
		if ctx.Err() != nil {
			r.settle(ctx, j, fmt.Errorf("%w: %v", panel.ErrRestoreCancelled, context.Cause(ctx)), panel.Location{})
			continue
		}
		r.transition(j, StateCreating, 0)
		if adopt {
			if info, ok := adoptable(panes, j.name, bound); ok {
				bound[info.ID] = true
				j.pane = info.ID
				j.result.Adopted = true
				r.settle(ctx, j, nil, info.Location)
				continue
			}
		}
		pane, placed, err := r.place(ctx, j.loc, panes)
		if err != nil {
			r.settle(ctx, j, err, panel.Location{})
			continue
		}
		bound[pane] = true
		j.pane = pane
		j.result.Placement = placed
		if err := r.host.SetLabel(ctx, pane, j.name); err != nil {
			r.log.Warn("reconcile: label pane failed", slog.String("panel", j.name), slog.Any("err", err))
		}
		jctx := r.track(ctx, pane)
		g.Go(func() error {
			r.replay(jctx, j)
			return nil
		})
		if fresh, err := r.host.Panes(ctx); err == nil {
			panes = fresh
		}
	}
	_ = g.Wait()
}

func adoptable(panes []host.PaneInfo, name string, bound map[host.PaneID]bool) (host.PaneInfo, bool) {
	for _, info := range panes {
		if info.Label == name && !bound[info.ID] {
			return info, true
		}
	}
	return host.PaneInfo{}, false
}

// track registers a cancel func for pane so a close event stops its replay.
func (r *Reconciler) track(ctx context.Context, pane host.PaneID) context.Context {
	jctx, cancel := context.WithCancelCause(ctx)
	err := r.loop.Do(ctx, func() {
		r.inflight[pane] = &flight{cancel: cancel}
	})
	if err != nil {
		cancel(err)
	}
	return jctx
}

// place creates the pane for loc. A missing or occupied target falls back to
// a new tab in the same window, then to a new window.
func (r *Reconciler) place(ctx context.Context, loc panel.Location, panes []host.PaneInfo) (host.PaneID, Placement, error) {
	primary := host.Placement{Window: loc.Window, Tab: loc.Tab}
	pane, err := r.placeExact(ctx, loc, panes)
	if err == nil {
		return pane, PlacedExact, nil
	}
	r.log.Debug("reconcile: exact placement failed", slog.String("location", loc.String()), slog.Any("err", err))
	cause := err
	if ctx.Err() != nil {
		return "", "", fmt.Errorf("%w: %v", panel.ErrRestoreCancelled, context.Cause(ctx))
	}
	fallbacks := []struct {
		at   host.Placement
		kind Placement
	}{
		{host.Placement{Window: loc.Window}, PlacedNewTab},
		{host.Placement{}, PlacedNewWindow},
	}
	for _, fb := range fallbacks {
		if fb.at == primary && len(loc.Split) == 0 {
			continue
		}
		if fb.kind == PlacedNewTab && loc.Window == "" {
			continue
		}
		pane, err := r.host.CreatePane(ctx, fb.at)
		if err == nil {
			return pane, fb.kind, nil
		}
		cause = err
	}
	return "", "", fmt.Errorf("%w: %v", panel.ErrPaneCreateFailed, cause)
}

func (r *Reconciler) placeExact(ctx context.Context, loc panel.Location, panes []host.PaneInfo) (host.PaneID, error) {
	parent, dir, ok := loc.Parent()
	if !ok {
		return r.host.CreatePane(ctx, host.Placement{Window: loc.Window, Tab: loc.Tab})
	}
	if _, taken := host.Find(panes, loc); taken {
		return "", fmt.Errorf("%w: %s", host.ErrTargetOccupied, loc)
	}
	target, found := host.Find(panes, parent)
	if !found {
		return "", fmt.Errorf("%w: %s", host.ErrTargetMissing, parent)
	}
	return r.host.Split(ctx, target.ID, dir)
}

// replay drives the pane from spawning to idle, one command at a time.
func (r *Reconciler) replay(ctx context.Context, j *job) {
	state, i := StateSpawning, 0
	var err error
	for state != StateIdle {
		r.transition(j, state, i)
		if state, i, err = r.advance(ctx, j, state, i); err != nil {
			break
		}
	}
	var loc panel.Location
	if err == nil {
		if panes, lerr := r.host.Panes(ctx); lerr == nil {
			if info, ok := host.ByID(panes, j.pane); ok {
				loc = info.Location
			}
		}
	}
	r.settle(ctx, j, err, loc)
}

func (r *Reconciler) advance(ctx context.Context, j *job, state State, i int) (State, int, error) {
	switch state {
	case StateSpawning:
		sctx, cancel := context.WithTimeout(ctx, r.opts.ShellReadyTimeout)
		defer cancel()
		if err := r.host.Spawn(sctx, j.pane); err != nil {
			return state, i, stepError(ctx, panel.ErrProcessSpawnFailed, err)
		}
		return StateShellReady, 0, nil
	case StateShellReady:
		if len(j.commands) == 0 {
			return StateIdle, 0, nil
		}
		return StateSending, 0, nil
	case StateSending:
		cctx, cancel := context.WithTimeout(ctx, r.opts.CommandTimeout)
		defer cancel()
		cmd := j.commands[i]
		r.log.Debug("reconcile: send command",
			slog.String("panel", j.name),
			slog.Int("index", i),
			logging.CommandAttr("command", cmd))
		if err := r.host.SendInput(cctx, j.pane, []byte(cmd+host.Enter)); err != nil {
			return state, i, stepError(ctx, panel.ErrCommandReplayFailed, fmt.Errorf("command %d: %w", i+1, err))
		}
		return StateAccepted, i, nil
	case StateAccepted:
		if i+1 < len(j.commands) {
			return StateSending, i + 1, nil
		}
		return StateIdle, i, nil
	}
	return state, i, fmt.Errorf("reconcile: unexpected state %q", state)
}

// stepError classifies a failed step. A cancelled context or a vanished pane
// is a cancellation rather than a failure.
func stepError(ctx context.Context, kind, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", panel.ErrRestoreCancelled, context.Cause(ctx))
	}
	if errors.Is(err, host.ErrPaneNotFound) {
		return fmt.Errorf("%w: %v", panel.ErrRestoreCancelled, errPaneClosed)
	}
	return fmt.Errorf("%w: %v", kind, err)
}

func (r *Reconciler) transition(j *job, state State, i int) {
	r.log.Debug("reconcile: transition",
		slog.String("panel", j.name),
		slog.String("state", string(state)),
		slog.Int("command", i))
	if r.opts.OnTransition == nil {
		return
	}
	tr := Transition{Panel: j.id, Name: j.name, Pane: j.pane, State: state, Command: i}
	r.loop.Post(func() { r.opts.OnTransition(tr) })
}

// settle closes the pane of a failed job and records the outcome on the loop.
// A panel renamed while its restore ran gets its pane relabelled.
func (r *Reconciler) settle(ctx context.Context, j *job, err error, loc panel.Location) {
	if err != nil && j.pane != "" {
		r.closePane(ctx, j.pane)
	}
	orphan := false
	relabel := ""
	doErr := r.loop.Do(context.WithoutCancel(ctx), func() {
		closedDuringReplay := false
		if fl, ok := r.inflight[j.pane]; ok {
			closedDuringReplay = fl.closed
			fl.cancel(nil)
			delete(r.inflight, j.pane)
		}
		if err == nil && closedDuringReplay {
			err = fmt.Errorf("%w: %v", panel.ErrRestoreCancelled, errPaneClosed)
		}
		p, ok := r.panels.Get(j.id)
		if !ok {
			orphan = err == nil && j.pane != ""
			err = fmt.Errorf("%w: %s removed during restore", panel.ErrNotFound, j.name)
		} else if err == nil {
			err = r.bind(p, j.pane, loc)
			if err == nil && p.Name != j.name {
				relabel = p.Name
			}
		}
		if err != nil && ok {
			status := panel.StatusFailed
			if errors.Is(err, panel.ErrRestoreCancelled) {
				status = panel.StatusClosed
			}
			r.panels.Unbind(p.ID, status)
			p.Failure = err.Error()
		}
		final := r.record(j, err)
		if r.opts.OnTransition != nil {
			r.opts.OnTransition(Transition{Panel: j.id, Name: j.name, Pane: j.pane, State: final, Command: len(j.commands)})
		}
	})
	if doErr != nil {
		r.record(j, fmt.Errorf("%w: %v", panel.ErrRestoreCancelled, doErr))
	}
	if orphan {
		r.closePane(ctx, j.pane)
	}
	if relabel != "" {
		if err := r.host.SetLabel(context.WithoutCancel(ctx), j.pane, relabel); err != nil {
			r.log.Warn("reconcile: relabel pane failed", slog.String("panel", relabel), slog.Any("err", err))
		}
	}
}

// record fills the job result and returns the final machine state.
func (r *Reconciler) record(j *job, err error) State {
	j.result.Pane = j.pane
	j.result.Err = err
	final := StateIdle
	switch {
	case err == nil && j.result.Adopted:
		j.result.Outcome = OutcomeAdopted
	case err == nil:
		j.result.Outcome = OutcomeRestored
	case errors.Is(err, panel.ErrRestoreCancelled):
		j.result.Outcome = OutcomeCancelled
		final = StateCancelled
	default:
		j.result.Outcome = OutcomeFailed
		final = StateFailed
	}
	if err != nil {
		j.result.Pane = ""
		r.log.Warn("reconcile: panel not restored",
			slog.String("panel", j.name),
			slog.String("kind", string(panel.KindOf(err))),
			slog.Any("err", err))
	}
	return final
}

func (r *Reconciler) closePane(ctx context.Context, pane host.PaneID) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := r.host.ClosePane(cctx, pane); err != nil && !errors.Is(err, host.ErrPaneNotFound) {
		r.log.Warn("reconcile: close pane failed", slog.String("pane", string(pane)), slog.Any("err", err))
	}
}
