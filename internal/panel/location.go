package panel

import (
	"fmt"
	"slices"
	"strings"
)

// Direction is the side on which a split places the new pane.
type Direction string

const (
	Right Direction = "right"
	Down  Direction = "down"
)

// ParseDirection accepts right/down and the horizontal/vertical layout aliases.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "right", "r", "horizontal", "h":
		return Right, nil
	case "down", "d", "vertical", "v":
		return Down, nil
	default:
		return "", fmt.Errorf("%w: split direction %q", ErrInvalidLocation, raw)
	}
}

// Location is a best-effort placement hint. Split is a creation path: a tab's
// root pane has an empty path and splitting the pane at P in direction D
// yields P+[D].
type Location struct {
	Window string      `json:"window,omitempty"`
	Tab    string      `json:"tab,omitempty"`
	Split  []Direction `json:"split,omitempty"`
}

func (l Location) IsEmpty() bool {
	return l.Window == "" && l.Tab == "" && len(l.Split) == 0
}

func (l Location) Equal(o Location) bool {
	return l.Window == o.Window && l.Tab == o.Tab && slices.Equal(l.Split, o.Split)
}

func (l Location) Clone() Location {
	l.Split = slices.Clone(l.Split)
	return l
}

// Parent returns the location of the pane this one was split from.
func (l Location) Parent() (Location, Direction, bool) {
	if len(l.Split) == 0 {
		return l, "", false
	}
	parent := l.Clone()
	last := parent.Split[len(parent.Split)-1]
	parent.Split = parent.Split[:len(parent.Split)-1]
	return parent, last, true
}

// Child returns the location of a pane split from l in direction d.
func (l Location) Child(d Direction) Location {
	out := l.Clone()
	out.Split = append(out.Split, d)
	return out
}

// String renders "window/tab/right,down". Empty segments are kept.
func (l Location) String() string {
	if l.IsEmpty() {
		return ""
	}
	parts := make([]string, len(l.Split))
	for i, d := range l.Split {
		parts[i] = string(d)
	}
	out := l.Window + "/" + l.Tab
	if len(parts) > 0 {
		out += "/" + strings.Join(parts, ",")
	}
	return out
}

// ParseLocation is the inverse of Location.String.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, nil
	}
	segs := strings.SplitN(raw, "/", 3)
	loc := Location{Window: strings.TrimSpace(segs[0])}
	if len(segs) > 1 {
		loc.Tab = strings.TrimSpace(segs[1])
	}
	if len(segs) > 2 {
		split, err := ParseSplit(segs[2])
		if err != nil {
			return Location{}, err
		}
		loc.Split = split
	}
	return loc, nil
}

// ParseSplit parses a comma separated direction list.
func ParseSplit(raw string) ([]Direction, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []Direction
	for _, part := range strings.Split(raw, ",") {
		d, err := ParseDirection(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
