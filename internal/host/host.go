// Package host is the contract panelctx consumes from the terminal host: pane
// tree mutation, process readiness, input delivery, focus and change events.
package host

import (
	"context"
	"errors"

	"github.com/regenrek/panelctx/internal/panel"
)

type PaneID = panel.PaneID

// Enter terminates a command line passed to SendInput.
const Enter = "\r"

var (
	// ErrTargetMissing means the window, tab or parent pane of a placement does not exist.
	ErrTargetMissing = errors.New("host: target missing")
	// ErrTargetOccupied means the exact position is already taken by another pane.
	ErrTargetOccupied = errors.New("host: target occupied")
	ErrPaneNotFound   = errors.New("host: pane not found")
)

// Placement asks for a new tab. An empty Window creates a new window; an empty
// Tab appends a tab to Window. A Tab that names an existing tab is occupied.
type Placement struct {
	Window string
	Tab    string
}

type PaneInfo struct {
	ID       PaneID
	Location panel.Location
	// Label is the panel name stored on the pane, if any.
	Label string
	// Focused marks the pane the user is looking at.
	Focused bool
}

type EventKind string

const (
	EventCreated EventKind = "created"
	EventClosed  EventKind = "closed"
	EventMoved   EventKind = "moved"
	EventSplit   EventKind = "split"
	EventFocused EventKind = "focused"
)

// Event reports a pane tree change. Affected carries the recomputed location of
// every pane whose location changed, including Pane itself when it still exists.
type Event struct {
	Kind     EventKind
	Pane     PaneID
	Location panel.Location
	Affected []PaneInfo
}

// Host is implemented by tmuxhost and memhost. Methods may block and must not
// be called from the control loop.
type Host interface {
	CreatePane(ctx context.Context, at Placement) (PaneID, error)
	Split(ctx context.Context, pane PaneID, dir panel.Direction) (PaneID, error)
	ClosePane(ctx context.Context, pane PaneID) error
	Panes(ctx context.Context) ([]PaneInfo, error)
	SetLabel(ctx context.Context, pane PaneID, label string) error
	// Spawn starts the pane process and returns once its shell is ready.
	Spawn(ctx context.Context, pane PaneID) error
	// SendInput returns once the host has accepted data for the pane.
	SendInput(ctx context.Context, pane PaneID, data []byte) error
	Focus(ctx context.Context, pane PaneID) error
	Events() <-chan Event
}

// Find returns the pane at loc, if any.
func Find(panes []PaneInfo, loc panel.Location) (PaneInfo, bool) {
	for _, p := range panes {
		if p.Location.Equal(loc) {
			return p, true
		}
	}
	return PaneInfo{}, false
}

// ByID returns the pane with id, if any.
func ByID(panes []PaneInfo, id PaneID) (PaneInfo, bool) {
	for _, p := range panes {
		if p.ID == id {
			return p, true
		}
	}
	return PaneInfo{}, false
}
