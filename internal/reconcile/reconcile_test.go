package reconcile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/regenrek/panelctx/internal/ctlloop"
	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/host/memhost"
	"github.com/regenrek/panelctx/internal/navigator"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/panelstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	loop   *ctlloop.Loop
	host   *memhost.Host
	panels *panel.Set
	nav    *navigator.Navigator
	rec    *Reconciler

	// loop-owned
	changes     int
	transitions []Transition
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		loop:   ctlloop.New(),
		host:   memhost.New(),
		panels: panel.NewSet(),
		nav:    navigator.New(navigator.Options{Fuzzy: true}),
	}
	f.nav.Init(nil)
	opts.OnChange = func() { f.changes++ }
	opts.OnTransition = func(tr Transition) { f.transitions = append(f.transitions, tr) }
	f.rec = New(f.loop, f.host, f.panels, f.nav, opts)
	f.loop.Start()
	t.Cleanup(func() {
		_ = f.host.Close()
		f.loop.Stop()
	})
	return f
}

// pumpEvents feeds host events into HandleEvent until the host is closed.
func (f *fixture) pumpEvents(t *testing.T) {
	t.Helper()
	events := f.host.Events()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			f.loop.Post(func() { f.rec.HandleEvent(ev) })
		}
	}()
	t.Cleanup(func() {
		_ = f.host.Close()
		wg.Wait()
	})
}

func (f *fixture) panel(t *testing.T, name string) panel.Panel {
	t.Helper()
	p, err := ctlloop.Call(context.Background(), f.loop, func() (panel.Panel, error) {
		p, ok := f.panels.ByName(name)
		if !ok {
			return panel.Panel{}, panel.ErrNotFound
		}
		return p.Clone(), nil
	})
	if err != nil {
		t.Fatalf("panel %q: %v", name, err)
	}
	return p
}

func (f *fixture) eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := ctlloop.Call(context.Background(), f.loop, func() (bool, error) { return cond(), nil })
		if err != nil {
			t.Fatalf("%s: %v", what, err)
		}
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func loc(window, tab string, split ...panel.Direction) panel.Location {
	return panel.Location{Window: window, Tab: tab, Split: split}
}

func TestRestoreReplaysPanelsInStoredOrder(t *testing.T) {
	f := newFixture(t, Options{})
	records := []panelstore.Record{
		{Name: "build", Commands: []string{"cd ~/proj", "make watch"}},
		{Name: "logs", Commands: []string{"tail -f app.log"}},
	}
	report, err := f.rec.Restore(context.Background(), records)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if got := report.Summary(); got != "2 of 2 panels restored" {
		t.Fatalf("summary = %q", got)
	}
	var lines []string
	for _, in := range f.host.Journal() {
		lines = append(lines, in.Label+": "+in.Line())
	}
	want := []string{"build: cd ~/proj", "build: make watch", "logs: tail -f app.log"}
	if !slices.Equal(lines, want) {
		t.Fatalf("journal = %q, want %q", lines, want)
	}
	panes, _ := f.host.Panes(context.Background())
	if len(panes) != 2 {
		t.Fatalf("host has %d panes, want 2", len(panes))
	}
	for _, rec := range records {
		p := f.panel(t, rec.Name)
		if !p.IsLive() {
			t.Fatalf("%s status = %s, want live", rec.Name, p.Status)
		}
		if _, ok := host.ByID(panes, p.LiveRef); !ok {
			t.Fatalf("%s bound to missing pane %s", rec.Name, p.LiveRef)
		}
		if !slices.Equal(p.Commands, rec.Commands) {
			t.Fatalf("%s commands = %q", rec.Name, p.Commands)
		}
	}
	entry, err := ctlloop.Call(context.Background(), f.loop, func() (navigator.Entry, error) {
		return f.nav.Resolve("logs")
	})
	if err != nil || entry.Pane != f.panel(t, "logs").LiveRef {
		t.Fatalf("Resolve(logs) = %+v, %v", entry, err)
	}
}

func TestReplayStateMachineOrder(t *testing.T) {
	f := newFixture(t, Options{})
	if _, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "a", Commands: []string{"one", "two"}},
	}); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	got, _ := ctlloop.Call(context.Background(), f.loop, func() ([]string, error) {
		var out []string
		for _, tr := range f.transitions {
			step := string(tr.State)
			if tr.State == StateSending || tr.State == StateAccepted {
				step += "[" + string(rune('0'+tr.Command)) + "]"
			}
			out = append(out, step)
		}
		return out, nil
	})
	want := []string{"creating", "spawning", "shell-ready", "sending[0]", "accepted[0]", "sending[1]", "accepted[1]", "idle"}
	if !slices.Equal(got, want) {
		t.Fatalf("transitions = %q, want %q", got, want)
	}
}

func TestRestoreIsolatesSpawnFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.host.SetFaults(memhost.Faults{
		Spawn: func(ctx context.Context, pane host.PaneInfo) error {
			if pane.Label == "bad" {
				return errors.New("exec: no such file")
			}
			return nil
		},
	})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "a", Commands: []string{"echo a"}},
		{Name: "bad", Commands: []string{"echo bad"}},
		{Name: "c", Commands: []string{"echo c"}},
	})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if report.Live() != 2 {
		t.Fatalf("live = %d, want 2", report.Live())
	}
	bad := report.Results[1]
	if bad.Outcome != OutcomeFailed || !errors.Is(bad.Err, panel.ErrProcessSpawnFailed) {
		t.Fatalf("bad result = %+v", bad)
	}
	if !strings.HasPrefix(report.Summary(), "2 of 3 panels restored; failures: bad (process spawn failed:") {
		t.Fatalf("summary = %q", report.Summary())
	}
	if !errors.Is(report.Err(), panel.ErrProcessSpawnFailed) {
		t.Fatalf("report.Err() = %v", report.Err())
	}
	if p := f.panel(t, "bad"); p.Status != panel.StatusFailed || p.LiveRef != "" || p.Failure == "" {
		t.Fatalf("bad panel = %+v", p)
	}
	for _, name := range []string{"a", "c"} {
		if !f.panel(t, name).IsLive() {
			t.Fatalf("%s not live", name)
		}
	}
	panes, _ := f.host.Panes(context.Background())
	if len(panes) != 2 {
		t.Fatalf("failed pane not closed: %d panes", len(panes))
	}
	for _, in := range f.host.Journal() {
		if in.Label == "bad" {
			t.Fatalf("bad received input %q", in.Data)
		}
	}
}

func TestRestoreFallbackStacksInStoredOrder(t *testing.T) {
	f := newFixture(t, Options{})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "first", Location: loc("work", "gone", panel.Right)},
		{Name: "second", Location: loc("work", "gone", panel.Down)},
	})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	for _, res := range report.Results {
		if res.Outcome != OutcomeRestored || res.Placement != PlacedNewTab {
			t.Fatalf("result = %+v", res)
		}
	}
	if got := f.panel(t, "first").Location; !got.Equal(loc("work", "0")) {
		t.Fatalf("first location = %v", got)
	}
	if got := f.panel(t, "second").Location; !got.Equal(loc("work", "1")) {
		t.Fatalf("second location = %v", got)
	}
}

func TestRestoreOccupiedTabFallsBackToNewTab(t *testing.T) {
	f := newFixture(t, Options{})
	if _, err := f.host.CreatePane(context.Background(), host.Placement{Window: "dev", Tab: "main"}); err != nil {
		t.Fatalf("CreatePane() error: %v", err)
	}
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "editor", Location: loc("dev", "main")},
	})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if res := report.Results[0]; res.Outcome != OutcomeRestored || res.Placement != PlacedNewTab {
		t.Fatalf("result = %+v", res)
	}
	if got := f.panel(t, "editor").Location; got.Window != "dev" || got.Tab == "main" {
		t.Fatalf("editor location = %v", got)
	}
}

func TestRestoreReproducesSplitPath(t *testing.T) {
	f := newFixture(t, Options{})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "left", Location: loc("dev", "code")},
		{Name: "right", Location: loc("dev", "code", panel.Right)},
		{Name: "bottom", Location: loc("dev", "code", panel.Right, panel.Down)},
	})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	for _, res := range report.Results {
		if res.Placement != PlacedExact {
			t.Fatalf("%s placement = %s", res.Name, res.Placement)
		}
	}
	if got := f.panel(t, "bottom").Location; !got.Equal(loc("dev", "code", panel.Right, panel.Down)) {
		t.Fatalf("bottom location = %v", got)
	}
}

func TestRestoreNewWindowWhenTabCreationFails(t *testing.T) {
	f := newFixture(t, Options{})
	f.host.SetFaults(memhost.Faults{
		CreatePane: func(ctx context.Context, at host.Placement) error {
			if at.Window == "dev" {
				return errors.New("window locked")
			}
			return nil
		},
	})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{{Name: "x", Location: loc("dev", "0")}})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if res := report.Results[0]; res.Outcome != OutcomeRestored || res.Placement != PlacedNewWindow {
		t.Fatalf("result = %+v", res)
	}
}

func TestRestorePaneCreateFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.host.SetFaults(memhost.Faults{
		CreatePane: func(ctx context.Context, at host.Placement) error { return errors.New("no room") },
	})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{{Name: "x"}, {Name: "y"}})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if report.Live() != 0 || len(report.Failures()) != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, res := range report.Results {
		if !errors.Is(res.Err, panel.ErrPaneCreateFailed) {
			t.Fatalf("%s err = %v", res.Name, res.Err)
		}
	}
	if got := panel.KindOf(report.Err()); got != panel.KindPaneCreateFailed {
		t.Fatalf("KindOf(report.Err()) = %s", got)
	}
}

func TestRestoreAdoptsLabelledPane(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	pane, err := f.host.CreatePane(ctx, host.Placement{Window: "dev"})
	if err != nil {
		t.Fatalf("CreatePane() error: %v", err)
	}
	_ = f.host.SetLabel(ctx, pane, "build")
	report, err := f.rec.Restore(ctx, []panelstore.Record{{Name: "build", Commands: []string{"make"}}})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if res := report.Results[0]; res.Outcome != OutcomeAdopted || res.Pane != pane {
		t.Fatalf("result = %+v", res)
	}
	if len(f.host.Journal()) != 0 {
		t.Fatalf("adopted pane received input: %+v", f.host.Journal())
	}
	if got := f.panel(t, "build").Location; !got.Equal(loc("dev", "0")) {
		t.Fatalf("location = %v", got)
	}
}

func TestRestoreSkipsLivePanels(t *testing.T) {
	f := newFixture(t, Options{})
	records := []panelstore.Record{{Name: "a", Commands: []string{"x"}}}
	if _, err := f.rec.Restore(context.Background(), records); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	report, err := f.rec.Restore(context.Background(), records)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if report.Results[0].Outcome != OutcomeSkipped {
		t.Fatalf("second restore = %+v", report.Results[0])
	}
	if n := len(f.host.Journal()); n != 1 {
		t.Fatalf("journal has %d inputs, want 1", n)
	}
}

func TestRestoreParallelReplaysEveryPanel(t *testing.T) {
	f := newFixture(t, Options{Parallel: 4})
	var records []panelstore.Record
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		records = append(records, panelstore.Record{Name: name, Commands: []string{name + "1", name + "2"}})
	}
	report, err := f.rec.Restore(context.Background(), records)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if report.Live() != len(records) {
		t.Fatalf("summary = %q", report.Summary())
	}
	for _, rec := range records {
		p := f.panel(t, rec.Name)
		if got := f.host.InputsFor(p.LiveRef); !slices.Equal(got, rec.Commands) {
			t.Fatalf("%s inputs = %q", rec.Name, got)
		}
	}
}

func TestReplayCancelledWhenPaneClosed(t *testing.T) {
	f := newFixture(t, Options{CommandTimeout: 5 * time.Second})
	f.host.SetFaults(memhost.Faults{
		SendInput: func(ctx context.Context, pane host.PaneInfo, data []byte) error {
			if pane.Label != "slow" {
				return nil
			}
			_ = f.host.ClosePane(context.Background(), pane.ID)
			ev := host.Event{Kind: host.EventClosed, Pane: pane.ID}
			f.loop.Post(func() { f.rec.HandleEvent(ev) })
			<-ctx.Done()
			return ctx.Err()
		},
	})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "slow", Commands: []string{"sleep", "never"}},
		{Name: "next", Commands: []string{"echo ok"}},
	})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if res := report.Results[0]; res.Outcome != OutcomeCancelled || !errors.Is(res.Err, panel.ErrRestoreCancelled) {
		t.Fatalf("slow result = %+v", res)
	}
	if res := report.Results[1]; res.Outcome != OutcomeRestored {
		t.Fatalf("next result = %+v", res)
	}
	if p := f.panel(t, "slow"); p.Status != panel.StatusClosed || p.LiveRef != "" {
		t.Fatalf("slow panel = %+v", p)
	}
}

func TestRestoreRelabelsPanelRenamedMidReplay(t *testing.T) {
	f := newFixture(t, Options{})
	f.host.SetFaults(memhost.Faults{
		Spawn: func(ctx context.Context, pane host.PaneInfo) error {
			if pane.Label != "build" {
				return nil
			}
			return f.loop.Do(ctx, func() {
				p, ok := f.panels.ByName("build")
				if !ok {
					t.Errorf("build not in set during replay")
					return
				}
				if err := f.panels.Rename(p.ID, "builder"); err != nil {
					t.Errorf("Rename() error: %v", err)
				}
			})
		},
	})
	report, err := f.rec.Restore(context.Background(), []panelstore.Record{{Name: "build", Commands: []string{"make"}}})
	if err != nil || report.Err() != nil {
		t.Fatalf("Restore() = %v, %v", report.Err(), err)
	}
	p := f.panel(t, "builder")
	if !p.IsLive() {
		t.Fatalf("builder = %+v", p)
	}
	panes, _ := f.host.Panes(context.Background())
	info, ok := host.ByID(panes, p.LiveRef)
	if !ok || info.Label != "builder" {
		t.Fatalf("pane label = %q, want builder", info.Label)
	}
}

func TestRestoreCancelledContext(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	f.host.SetFaults(memhost.Faults{
		Spawn: func(context.Context, host.PaneInfo) error {
			cancel()
			return nil
		},
	})
	report, err := f.rec.Restore(ctx, []panelstore.Record{{Name: "a", Commands: []string{"x"}}, {Name: "b"}})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	for _, res := range report.Results {
		if res.Outcome != OutcomeCancelled {
			t.Fatalf("%s outcome = %s", res.Name, res.Outcome)
		}
	}
	panes, _ := f.host.Panes(context.Background())
	if len(panes) != 0 {
		t.Fatalf("cancelled restore left %d panes", len(panes))
	}
}

func TestHandleEventTracksMovesAndCloses(t *testing.T) {
	f := newFixture(t, Options{})
	f.pumpEvents(t)
	if _, err := f.rec.Restore(context.Background(), []panelstore.Record{
		{Name: "a", Location: loc("dev", "main")},
		{Name: "b", Location: loc("dev", "main", panel.Right)},
	}); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	a, b := f.panel(t, "a"), f.panel(t, "b")
	if err := f.host.SwapPanes(a.LiveRef, b.LiveRef); err != nil {
		t.Fatalf("SwapPanes() error: %v", err)
	}
	f.eventually(t, "swap applied", func() bool {
		pa, _ := f.panels.ByName("a")
		pb, _ := f.panels.ByName("b")
		return pa.Location.Equal(loc("dev", "main", panel.Right)) && pb.Location.Equal(loc("dev", "main"))
	})
	if err := f.host.MoveTab("dev", "main", "other"); err != nil {
		t.Fatalf("MoveTab() error: %v", err)
	}
	f.eventually(t, "move applied", func() bool {
		pa, _ := f.panels.ByName("a")
		pb, _ := f.panels.ByName("b")
		return pa.Location.Window == "other" && pb.Location.Window == "other" && f.changes > 0
	})
	if err := f.host.ClosePane(context.Background(), a.LiveRef); err != nil {
		t.Fatalf("ClosePane() error: %v", err)
	}
	f.eventually(t, "close applied", func() bool {
		pa, _ := f.panels.ByName("a")
		return pa.LiveRef == "" && pa.Status == panel.StatusClosed && f.nav.Len() == 1
	})
	f.eventually(t, "b relocated after close", func() bool {
		pb, _ := f.panels.ByName("b")
		return pb.Location.Equal(loc("other", "main"))
	})
}

func TestHandleEventFocusedSetsCycleStart(t *testing.T) {
	f := newFixture(t, Options{})
	f.pumpEvents(t)
	if _, err := f.rec.Restore(context.Background(), []panelstore.Record{{Name: "a"}, {Name: "b"}, {Name: "c"}}); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	b := f.panel(t, "b")
	if err := f.host.Focus(context.Background(), b.LiveRef); err != nil {
		t.Fatalf("Focus() error: %v", err)
	}
	f.eventually(t, "focus recorded", func() bool {
		next, err := f.nav.Cycle(1)
		return err == nil && next.Name == "c"
	})
}

func TestAdoptBindsClosedPanels(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.loop.Do(ctx, func() {
		_, _ = f.panels.Add(panel.Panel{Name: "shell"}, panel.ValidateOptions{})
		_, _ = f.panels.Add(panel.Panel{Name: "other"}, panel.ValidateOptions{})
	}); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	pane, _ := f.host.CreatePane(ctx, host.Placement{Window: "w"})
	_ = f.host.SetLabel(ctx, pane, "shell")
	stray, _ := f.host.CreatePane(ctx, host.Placement{Window: "w"})
	_ = f.host.SetLabel(ctx, stray, "unknown")
	n, err := f.rec.Adopt(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Adopt() = %d, %v", n, err)
	}
	if p := f.panel(t, "shell"); p.LiveRef != pane || !p.IsLive() {
		t.Fatalf("shell = %+v", p)
	}
	if p := f.panel(t, "other"); p.IsLive() {
		t.Fatalf("other adopted: %+v", p)
	}
}

func TestMaterializeReportsCreateFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.host.SetFaults(memhost.Faults{
		CreatePane: func(context.Context, host.Placement) error { return errors.New("denied") },
	})
	added, err := ctlloop.Call(context.Background(), f.loop, func() (*panel.Panel, error) {
		return f.panels.Add(panel.Panel{Name: "x"}, panel.ValidateOptions{})
	})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	res, err := f.rec.Materialize(context.Background(), added.ID)
	if err != nil {
		t.Fatalf("Materialize() error: %v", err)
	}
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, panel.ErrPaneCreateFailed) {
		t.Fatalf("result = %+v", res)
	}
}

func TestReportSummary(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{name: "empty", report: Report{}, want: "0 of 0 panels restored"},
		{
			name: "mixed",
			report: Report{Results: []Result{
				{Name: "a", Outcome: OutcomeRestored},
				{Name: "b", Outcome: OutcomeFailed, Err: panel.ErrPaneCreateFailed},
				{Name: "c", Outcome: OutcomeSkipped},
			}},
			want: "2 of 3 panels restored; failures: b (pane create failed)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Summary(); got != tt.want {
				t.Fatalf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}
