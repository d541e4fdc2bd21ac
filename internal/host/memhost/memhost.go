// Package memhost is an in-memory host.Host. It keeps a real layout tree per
// tab, journals every accepted input and lets callers inject faults.
package memhost

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/panel"
)

// Faults are consulted before an operation mutates state. A non-nil error
// fails the operation. Hooks run without the host lock held and may block.
type Faults struct {
	CreatePane func(ctx context.Context, at host.Placement) error
	Split      func(ctx context.Context, pane host.PaneInfo, dir panel.Direction) error
	Spawn      func(ctx context.Context, pane host.PaneInfo) error
	SendInput  func(ctx context.Context, pane host.PaneInfo, data []byte) error
}

// Input is one accepted SendInput call.
type Input struct {
	Seq   int
	Pane  host.PaneID
	Label string
	Data  string
}

// Line returns Data without the trailing Enter.
func (in Input) Line() string {
	return strings.TrimSuffix(in.Data, host.Enter)
}

type tab struct {
	name string
	root *node
}

type window struct {
	name string
	tabs []*tab
}

type pane struct {
	id      host.PaneID
	label   string
	spawned bool
}

const maxQueuedEvents = 4096

type Host struct {
	mu       sync.Mutex
	faults   Faults
	windows  []*window
	panes    map[host.PaneID]*pane
	nextPane int
	nextWin  int
	seq      int
	journal  []Input
	focused  host.PaneID
	locs     map[host.PaneID]panel.Location

	queue    []host.Event
	wake     chan struct{}
	events   chan host.Event
	pumpOnce sync.Once
	done     chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New() *Host {
	return &Host{
		panes:  map[host.PaneID]*pane{},
		locs:   map[host.PaneID]panel.Location{},
		wake:   make(chan struct{}, 1),
		events: make(chan host.Event),
		done:   make(chan struct{}),
	}
}

var _ host.Host = (*Host)(nil)

// SetFaults replaces the fault hooks.
func (h *Host) SetFaults(f Faults) {
	h.mu.Lock()
	h.faults = f
	h.mu.Unlock()
}

func (h *Host) getFaults() Faults {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.faults
}

func (h *Host) CreatePane(ctx context.Context, at host.Placement) (host.PaneID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f := h.getFaults().CreatePane; f != nil {
		if err := f(ctx, at); err != nil {
			return "", err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.window(at.Window)
	if w == nil {
		name := at.Window
		if name == "" {
			name = h.freeWindowName()
		}
		w = &window{name: name}
		h.windows = append(h.windows, w)
	}
	name := at.Tab
	if name == "" {
		name = freeTabName(w)
	} else if tabOf(w, name) != nil {
		return "", fmt.Errorf("%w: tab %s/%s", host.ErrTargetOccupied, w.name, name)
	}
	id := h.newPane()
	w.tabs = append(w.tabs, &tab{name: name, root: leaf(id)})
	h.emit(host.EventCreated, id)
	return id, nil
}

func (h *Host) Split(ctx context.Context, id host.PaneID, dir panel.Direction) (host.PaneID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := h.info(id)
	if err != nil {
		return "", err
	}
	if f := h.getFaults().Split; f != nil {
		if err := f(ctx, info, dir); err != nil {
			return "", err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, n := h.locate(id)
	if n == nil {
		return "", fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	fresh := h.newPane()
	t.root = split(t.root, n, fresh, dir)
	h.emit(host.EventSplit, fresh)
	return fresh, nil
}

func (h *Host) ClosePane(ctx context.Context, id host.PaneID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, n := h.locate(id)
	if n == nil {
		return fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	t.root = remove(t.root, n)
	if t.root == nil {
		h.dropTab(t)
	}
	delete(h.panes, id)
	if h.focused == id {
		h.focused = ""
	}
	h.emit(host.EventClosed, id)
	return nil
}

func (h *Host) Panes(ctx context.Context) ([]host.PaneInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot(), nil
}

func (h *Host) SetLabel(ctx context.Context, id host.PaneID, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panes[id]
	if !ok {
		return fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	p.label = label
	return nil
}

func (h *Host) Spawn(ctx context.Context, id host.PaneID) error {
	info, err := h.info(id)
	if err != nil {
		return err
	}
	if f := h.getFaults().Spawn; f != nil {
		if err := f(ctx, info); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panes[id]
	if !ok {
		return fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	p.spawned = true
	return nil
}

func (h *Host) SendInput(ctx context.Context, id host.PaneID, data []byte) error {
	info, err := h.info(id)
	if err != nil {
		return err
	}
	if f := h.getFaults().SendInput; f != nil {
		if err := f(ctx, info, data); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panes[id]
	if !ok {
		return fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	if !p.spawned {
		return fmt.Errorf("memhost: pane %s has no process", id)
	}
	h.seq++
	h.journal = append(h.journal, Input{Seq: h.seq, Pane: id, Label: p.label, Data: string(data)})
	return nil
}

func (h *Host) Focus(ctx context.Context, id host.PaneID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.panes[id]; !ok {
		return fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	h.focused = id
	h.emit(host.EventFocused, id)
	return nil
}

// Focused returns the last focused pane.
func (h *Host) Focused() host.PaneID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// Journal returns every accepted input in acceptance order.
func (h *Host) Journal() []Input {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.journal)
}

// InputsFor returns the lines accepted by pane, in order.
func (h *Host) InputsFor(id host.PaneID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, in := range h.journal {
		if in.Pane == id {
			out = append(out, in.Line())
		}
	}
	return out
}

// MoveTab moves a tab to another window, creating the window when missing.
func (h *Host) MoveTab(from, tabName, toWindow string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	src := h.window(from)
	if src == nil {
		return fmt.Errorf("%w: window %s", host.ErrTargetMissing, from)
	}
	t := tabOf(src, tabName)
	if t == nil {
		return fmt.Errorf("%w: tab %s/%s", host.ErrTargetMissing, from, tabName)
	}
	dst := h.window(toWindow)
	if dst == nil {
		dst = &window{name: toWindow}
		h.windows = append(h.windows, dst)
	}
	if tabOf(dst, t.name) != nil {
		t.name = freeTabName(dst)
	}
	src.tabs = slices.DeleteFunc(src.tabs, func(x *tab) bool { return x == t })
	dst.tabs = append(dst.tabs, t)
	if len(src.tabs) == 0 {
		h.windows = slices.DeleteFunc(h.windows, func(x *window) bool { return x == src })
	}
	h.emit(host.EventMoved, t.root.leaves(nil)[0])
	return nil
}

// SwapPanes exchanges the tree positions of two panes.
func (h *Host) SwapPanes(a, b host.PaneID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, na := h.locate(a)
	_, nb := h.locate(b)
	if na == nil || nb == nil {
		return fmt.Errorf("%w: swap %s %s", host.ErrPaneNotFound, a, b)
	}
	na.pane, nb.pane = nb.pane, na.pane
	h.emit(host.EventMoved, a)
	return nil
}

func (h *Host) info(id host.PaneID) (host.PaneInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panes[id]
	if !ok {
		return host.PaneInfo{}, fmt.Errorf("%w: %s", host.ErrPaneNotFound, id)
	}
	return host.PaneInfo{ID: id, Location: h.locationsLocked()[id], Label: p.label}, nil
}

func (h *Host) newPane() host.PaneID {
	h.nextPane++
	id := host.PaneID("%" + strconv.Itoa(h.nextPane))
	h.panes[id] = &pane{id: id}
	return id
}

func (h *Host) window(name string) *window {
	if name == "" {
		return nil
	}
	for _, w := range h.windows {
		if w.name == name {
			return w
		}
	}
	return nil
}

func tabOf(w *window, name string) *tab {
	for _, t := range w.tabs {
		if t.name == name {
			return t
		}
	}
	return nil
}

func (h *Host) freeWindowName() string {
	for {
		name := strconv.Itoa(h.nextWin)
		h.nextWin++
		if h.window(name) == nil {
			return name
		}
	}
}

func freeTabName(w *window) string {
	for i := 0; ; i++ {
		name := strconv.Itoa(i)
		if tabOf(w, name) == nil {
			return name
		}
	}
}

func (h *Host) locate(id host.PaneID) (*tab, *node) {
	for _, w := range h.windows {
		for _, t := range w.tabs {
			if n := t.root.find(id); n != nil {
				return t, n
			}
		}
	}
	return nil, nil
}

func (h *Host) dropTab(t *tab) {
	for _, w := range h.windows {
		w.tabs = slices.DeleteFunc(w.tabs, func(x *tab) bool { return x == t })
	}
	h.windows = slices.DeleteFunc(h.windows, func(w *window) bool { return len(w.tabs) == 0 })
}

func (h *Host) locationsLocked() map[host.PaneID]panel.Location {
	out := make(map[host.PaneID]panel.Location, len(h.panes))
	for _, w := range h.windows {
		for _, t := range w.tabs {
			paths := map[host.PaneID][]panel.Direction{}
			t.root.paths(nil, paths)
			for id, path := range paths {
				out[id] = panel.Location{Window: w.name, Tab: t.name, Split: path}
			}
		}
	}
	return out
}

func (h *Host) snapshot() []host.PaneInfo {
	locs := h.locationsLocked()
	var out []host.PaneInfo
	for _, w := range h.windows {
		for _, t := range w.tabs {
			for _, id := range t.root.leaves(nil) {
				out = append(out, host.PaneInfo{ID: id, Location: locs[id], Label: h.panes[id].label, Focused: id == h.focused})
			}
		}
	}
	return out
}
