// Package navigator indexes live panels by name and resolves navigation
// requests to a pane. It is owned by the control loop and is not safe for
// concurrent use.
package navigator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/regenrek/panelctx/internal/panel"
)

// Entry is a live panel reachable by name.
type Entry struct {
	Name string
	Pane panel.PaneID
}

type Options struct {
	// Fuzzy enables the subsequence tier after substring matching.
	Fuzzy bool
}

type Navigator struct {
	opts    Options
	byName  map[string]panel.PaneID
	sorted  []string
	focused panel.PaneID
	// echoes are focus requests whose host event has not arrived yet.
	echoes []panel.PaneID
	ready  bool
}

const maxEchoes = 16

func New(opts Options) *Navigator {
	return &Navigator{opts: opts, byName: map[string]panel.PaneID{}}
}

// Init rebuilds the index from entries and marks the navigator ready.
func (n *Navigator) Init(entries []Entry) {
	n.byName = make(map[string]panel.PaneID, len(entries))
	for _, e := range entries {
		if e.Name != "" && e.Pane != "" {
			n.byName[e.Name] = e.Pane
		}
	}
	n.resort()
	n.ready = true
}

// Reset drops every entry and the focus. The navigator must be Init'ed again.
func (n *Navigator) Reset() {
	n.byName = map[string]panel.PaneID{}
	n.sorted = nil
	n.focused = ""
	n.echoes = nil
	n.ready = false
}

func (n *Navigator) Ready() bool { return n.ready }

func (n *Navigator) Len() int { return len(n.byName) }

// Put adds or updates a live entry.
func (n *Navigator) Put(name string, pane panel.PaneID) {
	if name == "" || pane == "" {
		return
	}
	_, existed := n.byName[name]
	n.byName[name] = pane
	if !existed {
		n.resort()
	}
}

func (n *Navigator) Remove(name string) {
	if _, ok := n.byName[name]; !ok {
		return
	}
	delete(n.byName, name)
	n.resort()
}

// Rename moves an entry to a new name, keeping its pane.
func (n *Navigator) Rename(from, to string) {
	pane, ok := n.byName[from]
	if !ok {
		return
	}
	delete(n.byName, from)
	n.byName[to] = pane
	n.resort()
}

// SetFocused records the pane the user is looking at.
func (n *Navigator) SetFocused(pane panel.PaneID) {
	n.focused = pane
}

func (n *Navigator) Focused() panel.PaneID { return n.focused }

// FocusRequested sets focus to pane ahead of the host and remembers to skip
// the matching focus event.
func (n *Navigator) FocusRequested(pane panel.PaneID) {
	n.focused = pane
	if len(n.echoes) == maxEchoes {
		n.echoes = n.echoes[1:]
	}
	n.echoes = append(n.echoes, pane)
}

// FocusCancelled undoes a FocusRequested whose host call failed.
func (n *Navigator) FocusCancelled(pane, prev panel.PaneID) {
	for i := len(n.echoes) - 1; i >= 0; i-- {
		if n.echoes[i] == pane {
			n.echoes = slices.Delete(n.echoes, i, i+1)
			break
		}
	}
	if n.focused == pane {
		n.focused = prev
	}
}

// FocusObserved applies a host focus event. Echoes of our own requests are
// consumed in order; anything else is a user focus change.
func (n *Navigator) FocusObserved(pane panel.PaneID) {
	for i, p := range n.echoes {
		if p == pane {
			n.echoes = n.echoes[i+1:]
			return
		}
	}
	n.echoes = nil
	n.focused = pane
}

// Entries returns live entries in cycle order.
func (n *Navigator) Entries() []Entry {
	out := make([]Entry, len(n.sorted))
	for i, name := range n.sorted {
		out[i] = Entry{Name: name, Pane: n.byName[name]}
	}
	return out
}

func (n *Navigator) resort() {
	n.sorted = n.sorted[:0]
	for name := range n.byName {
		n.sorted = append(n.sorted, name)
	}
	slices.Sort(n.sorted)
}

// Resolve picks the single best live entry for query. Ties in the best tier
// are reported as *panel.AmbiguousError.
func (n *Navigator) Resolve(query string) (Entry, error) {
	if strings.TrimSpace(query) == "" {
		return Entry{}, fmt.Errorf("%w: empty query", panel.ErrNoMatch)
	}
	if pane, ok := n.byName[query]; ok {
		return Entry{Name: query, Pane: pane}, nil
	}
	lower := strings.ToLower(query)
	tiers := []func(name string) bool{
		func(name string) bool { return strings.EqualFold(name, query) },
		func(name string) bool { return strings.HasPrefix(strings.ToLower(name), lower) },
		func(name string) bool { return strings.Contains(strings.ToLower(name), lower) },
	}
	for _, match := range tiers {
		var hits []string
		for _, name := range n.sorted {
			if match(name) {
				hits = append(hits, name)
			}
		}
		if len(hits) > 0 {
			return n.pick(query, hits)
		}
	}
	if n.opts.Fuzzy {
		if hits := n.fuzzyBest(query); len(hits) > 0 {
			return n.pick(query, hits)
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", panel.ErrNoMatch, query)
}

// fuzzyBest returns every name sharing the top subsequence score.
func (n *Navigator) fuzzyBest(query string) []string {
	matches := fuzzy.Find(query, n.sorted)
	if len(matches) == 0 {
		return nil
	}
	best := matches[0].Score
	var hits []string
	for _, m := range matches {
		if m.Score == best {
			hits = append(hits, m.Str)
		}
	}
	slices.Sort(hits)
	return hits
}

func (n *Navigator) pick(query string, hits []string) (Entry, error) {
	if len(hits) > 1 {
		return Entry{}, &panel.AmbiguousError{Query: query, Candidates: hits}
	}
	return Entry{Name: hits[0], Pane: n.byName[hits[0]]}, nil
}

// Cycle returns the entry step positions away from the focused one in name
// order, wrapping. Without a focused live entry, forward starts at the first
// name and backward at the last.
func (n *Navigator) Cycle(step int) (Entry, error) {
	count := len(n.sorted)
	if count == 0 {
		return Entry{}, fmt.Errorf("%w: no live panels", panel.ErrNoMatch)
	}
	at := -1
	for i, name := range n.sorted {
		if n.byName[name] == n.focused {
			at = i
			break
		}
	}
	var next int
	switch {
	case at >= 0:
		next = ((at+step)%count + count) % count
	case step >= 0:
		next = 0
	default:
		next = count - 1
	}
	name := n.sorted[next]
	return Entry{Name: name, Pane: n.byName[name]}, nil
}
