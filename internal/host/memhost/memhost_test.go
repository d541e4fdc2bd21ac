package memhost

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/panel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loc(window, tab string, split ...panel.Direction) panel.Location {
	return panel.Location{Window: window, Tab: tab, Split: split}
}

func locationOf(t *testing.T, h *Host, id host.PaneID) panel.Location {
	t.Helper()
	panes, err := h.Panes(context.Background())
	if err != nil {
		t.Fatalf("Panes() error: %v", err)
	}
	info, ok := host.ByID(panes, id)
	if !ok {
		t.Fatalf("pane %s missing", id)
	}
	return info.Location
}

func TestCreatePanePlacement(t *testing.T) {
	ctx := context.Background()
	h := New()
	a, err := h.CreatePane(ctx, host.Placement{Window: "dev", Tab: "0"})
	if err != nil {
		t.Fatalf("CreatePane() error: %v", err)
	}
	if got := locationOf(t, h, a); !got.Equal(loc("dev", "0")) {
		t.Fatalf("location = %#v", got)
	}
	if _, err := h.CreatePane(ctx, host.Placement{Window: "dev", Tab: "0"}); !errors.Is(err, host.ErrTargetOccupied) {
		t.Fatalf("expected ErrTargetOccupied, got %v", err)
	}
	b, err := h.CreatePane(ctx, host.Placement{Window: "dev"})
	if err != nil {
		t.Fatalf("CreatePane(append) error: %v", err)
	}
	if got := locationOf(t, h, b); !got.Equal(loc("dev", "1")) {
		t.Fatalf("appended tab location = %#v", got)
	}
	c, err := h.CreatePane(ctx, host.Placement{})
	if err != nil {
		t.Fatalf("CreatePane(new window) error: %v", err)
	}
	if got := locationOf(t, h, c); got.Window == "dev" || got.Tab != "0" {
		t.Fatalf("new window location = %#v", got)
	}
}

func TestSplitCreationPaths(t *testing.T) {
	ctx := context.Background()
	h := New()
	root, _ := h.CreatePane(ctx, host.Placement{Window: "w", Tab: "t"})
	right, err := h.Split(ctx, root, panel.Right)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	below, err := h.Split(ctx, right, panel.Down)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	rootBelow, _ := h.Split(ctx, root, panel.Down)

	want := map[host.PaneID]panel.Location{
		root:      loc("w", "t"),
		right:     loc("w", "t", panel.Right),
		below:     loc("w", "t", panel.Right, panel.Down),
		rootBelow: loc("w", "t", panel.Down),
	}
	for id, l := range want {
		if got := locationOf(t, h, id); !got.Equal(l) {
			t.Fatalf("pane %s location = %v, want %v", id, got, l)
		}
	}
}

func TestSplitSameDirectionShiftsSiblings(t *testing.T) {
	ctx := context.Background()
	h := New()
	a, _ := h.CreatePane(ctx, host.Placement{Window: "w", Tab: "t"})
	b, _ := h.Split(ctx, a, panel.Right)
	c, _ := h.Split(ctx, a, panel.Right)
	if got := locationOf(t, h, c); !got.Equal(loc("w", "t", panel.Right)) {
		t.Fatalf("new pane location = %v", got)
	}
	if got := locationOf(t, h, b); !got.Equal(loc("w", "t", panel.Right, panel.Right)) {
		t.Fatalf("shifted pane location = %v", got)
	}
}

func TestCloseCollapsesTree(t *testing.T) {
	ctx := context.Background()
	h := New()
	a, _ := h.CreatePane(ctx, host.Placement{Window: "w", Tab: "t"})
	b, _ := h.Split(ctx, a, panel.Right)
	c, _ := h.Split(ctx, b, panel.Down)
	if err := h.ClosePane(ctx, a); err != nil {
		t.Fatalf("ClosePane() error: %v", err)
	}
	if got := locationOf(t, h, b); !got.Equal(loc("w", "t")) {
		t.Fatalf("b location after close = %v", got)
	}
	if got := locationOf(t, h, c); !got.Equal(loc("w", "t", panel.Down)) {
		t.Fatalf("c location after close = %v", got)
	}
	_ = h.ClosePane(ctx, b)
	_ = h.ClosePane(ctx, c)
	panes, _ := h.Panes(ctx)
	if len(panes) != 0 {
		t.Fatalf("expected empty host, got %d panes", len(panes))
	}
	if err := h.ClosePane(ctx, c); !errors.Is(err, host.ErrPaneNotFound) {
		t.Fatalf("expected ErrPaneNotFound, got %v", err)
	}
}

func TestSendInputJournal(t *testing.T) {
	ctx := context.Background()
	h := New()
	a, _ := h.CreatePane(ctx, host.Placement{})
	if err := h.SendInput(ctx, a, []byte("ls")); err == nil {
		t.Fatalf("expected error before spawn")
	}
	if err := h.Spawn(ctx, a); err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	_ = h.SetLabel(ctx, a, "build")
	for _, cmd := range []string{"cd ~/proj", "make watch"} {
		if err := h.SendInput(ctx, a, []byte(cmd)); err != nil {
			t.Fatalf("SendInput() error: %v", err)
		}
	}
	j := h.Journal()
	if len(j) != 2 || j[0].Data != "cd ~/proj" || j[1].Data != "make watch" || j[1].Label != "build" {
		t.Fatalf("journal = %#v", j)
	}
	if j[0].Seq >= j[1].Seq {
		t.Fatalf("sequence not increasing")
	}
}

func TestFaultsFailOperations(t *testing.T) {
	ctx := context.Background()
	h := New()
	boom := errors.New("boom")
	h.SetFaults(Faults{
		Spawn: func(_ context.Context, p host.PaneInfo) error {
			if p.Label == "bad" {
				return boom
			}
			return nil
		},
	})
	a, _ := h.CreatePane(ctx, host.Placement{})
	_ = h.SetLabel(ctx, a, "bad")
	if err := h.Spawn(ctx, a); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	b, _ := h.CreatePane(ctx, host.Placement{})
	if err := h.Spawn(ctx, b); err != nil {
		t.Fatalf("unexpected spawn failure: %v", err)
	}
}

func TestEventsCarryAffectedLocations(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()
	events := h.Events()

	a, _ := h.CreatePane(ctx, host.Placement{Window: "w", Tab: "t"})
	b, _ := h.Split(ctx, a, panel.Right)
	if err := h.ClosePane(ctx, a); err != nil {
		t.Fatalf("ClosePane() error: %v", err)
	}

	want := []host.EventKind{host.EventCreated, host.EventSplit, host.EventClosed}
	var got []host.Event
	for range want {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %d", len(got))
		}
	}
	for i, kind := range want {
		if got[i].Kind != kind {
			t.Fatalf("event %d kind = %s, want %s", i, got[i].Kind, kind)
		}
	}
	if got[1].Pane != b || !got[1].Location.Equal(loc("w", "t", panel.Right)) {
		t.Fatalf("split event = %#v", got[1])
	}
	closed := got[2]
	if closed.Pane != a || !closed.Location.Equal(loc("w", "t")) {
		t.Fatalf("closed event = %#v", closed)
	}
	info, ok := host.ByID(closed.Affected, b)
	if !ok || !info.Location.Equal(loc("w", "t")) {
		t.Fatalf("close should report b moving to the root, got %#v", closed.Affected)
	}
}

func TestMoveTabReportsMoved(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()
	events := h.Events()
	a, _ := h.CreatePane(ctx, host.Placement{Window: "one", Tab: "0"})
	<-events
	if err := h.MoveTab("one", "0", "two"); err != nil {
		t.Fatalf("MoveTab() error: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Kind != host.EventMoved {
			t.Fatalf("kind = %s", ev.Kind)
		}
		info, ok := host.ByID(ev.Affected, a)
		if !ok || info.Location.Window != "two" {
			t.Fatalf("affected = %#v", ev.Affected)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no moved event")
	}
}
