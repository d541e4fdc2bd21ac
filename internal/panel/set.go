package panel

import "fmt"

// Set holds panels in insertion order. Names are unique across every member
// regardless of status. A Set is not safe for concurrent use.
type Set struct {
	order  []ID
	byID   map[ID]*Panel
	byName map[string]ID
	byPane map[PaneID]ID
}

func NewSet() *Set {
	return &Set{
		byID:   map[ID]*Panel{},
		byName: map[string]ID{},
		byPane: map[PaneID]ID{},
	}
}

func (s *Set) Len() int { return len(s.order) }

// Names returns the member names, skipping the given id.
func (s *Set) Names(except ID) NameSet {
	out := make(NameSet, len(s.byName))
	for name, id := range s.byName {
		if id != except {
			out[name] = struct{}{}
		}
	}
	return out
}

// Add validates p against the set and inserts it. A missing ID is generated.
func (s *Set) Add(p Panel, opts ValidateOptions) (*Panel, error) {
	if err := Validate(p, s.Names(""), opts); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	if _, exists := s.byID[p.ID]; exists {
		return nil, fmt.Errorf("panel: id %s already present", p.ID)
	}
	if p.Status == "" {
		p.Status = StatusClosed
	}
	stored := p.Clone()
	s.order = append(s.order, stored.ID)
	s.byID[stored.ID] = &stored
	s.byName[stored.Name] = stored.ID
	if stored.LiveRef != "" {
		s.byPane[stored.LiveRef] = stored.ID
	}
	return &stored, nil
}

func (s *Set) Get(id ID) (*Panel, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Set) ByName(name string) (*Panel, bool) {
	id, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.byID[id], true
}

func (s *Set) ByPane(pane PaneID) (*Panel, bool) {
	id, ok := s.byPane[pane]
	if !ok {
		return nil, false
	}
	return s.byID[id], true
}

// Rename changes the name of id after validating it against the others.
func (s *Set) Rename(id ID, name string) error {
	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Name == name {
		return ValidateName(name)
	}
	candidate := p.Clone()
	candidate.Name = name
	if err := Validate(candidate, s.Names(id), ValidateOptions{}); err != nil {
		return err
	}
	delete(s.byName, p.Name)
	p.Name = name
	s.byName[name] = id
	return nil
}

// Bind associates id with pane and marks it live.
func (s *Set) Bind(id ID, pane PaneID) error {
	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if other, taken := s.byPane[pane]; taken && other != id {
		return fmt.Errorf("panel: pane %s already bound to %s", pane, other)
	}
	if p.LiveRef != "" {
		delete(s.byPane, p.LiveRef)
	}
	p.LiveRef = pane
	p.Status = StatusLive
	p.Failure = ""
	s.byPane[pane] = id
	return nil
}

// Unbind clears the live ref of id and sets status. It returns the pane that
// was bound, if any.
func (s *Set) Unbind(id ID, status Status) PaneID {
	p, ok := s.byID[id]
	if !ok {
		return ""
	}
	pane := p.LiveRef
	if pane != "" {
		delete(s.byPane, pane)
	}
	p.LiveRef = ""
	p.Status = status
	return pane
}

// Remove deletes id and returns the removed panel.
func (s *Set) Remove(id ID) (Panel, bool) {
	p, ok := s.byID[id]
	if !ok {
		return Panel{}, false
	}
	delete(s.byID, id)
	delete(s.byName, p.Name)
	if p.LiveRef != "" {
		delete(s.byPane, p.LiveRef)
	}
	for i, cur := range s.order {
		if cur == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *p, true
}

// Each visits members in insertion order until fn returns false.
func (s *Set) Each(fn func(*Panel) bool) {
	for _, id := range s.order {
		if !fn(s.byID[id]) {
			return
		}
	}
}

// Snapshot returns detached copies in insertion order.
func (s *Set) Snapshot() []Panel {
	out := make([]Panel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}
