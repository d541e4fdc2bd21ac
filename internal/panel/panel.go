// Package panel defines named panel contexts and their invariants.
package panel

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/regenrek/panelctx/internal/limits"
)

// ID identifies a panel within one process. IDs are never persisted.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// PaneID is the host's handle for a live pane.
type PaneID string

type Status string

const (
	StatusPending Status = "pending"
	StatusLive    Status = "live"
	StatusClosed  Status = "closed"
	StatusFailed  Status = "failed"
)

type Panel struct {
	ID       ID
	Name     string
	Location Location
	Commands []string
	// LiveRef is set only while the panel is bound to an existing pane.
	LiveRef PaneID
	Status  Status
	// Failure holds the last restore failure for StatusFailed.
	Failure string
}

func (p Panel) IsLive() bool {
	return p.Status == StatusLive && p.LiveRef != ""
}

func (p Panel) Clone() Panel {
	p.Location = p.Location.Clone()
	p.Commands = slices.Clone(p.Commands)
	return p
}

// NameSet is the set of names a candidate is checked against.
type NameSet map[string]struct{}

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

type ValidateOptions struct {
	RequireLocation bool
}

const reservedNameChars = "/:\t\n\r"

// Validate checks p against the naming, location and command rules. It has
// no side effects.
func Validate(p Panel, existing NameSet, opts ValidateOptions) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if existing.Has(p.Name) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
	}
	if opts.RequireLocation && p.Location.IsEmpty() {
		return ErrEmptyLocation
	}
	if err := validateLocation(p.Location); err != nil {
		return err
	}
	return ValidateCommands(p.Commands)
}

func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidName)
	case strings.ContainsAny(name, reservedNameChars):
		return fmt.Errorf("%w: %q contains a reserved separator", ErrInvalidName, name)
	case utf8.RuneCountInString(name) > limits.PanelNameMaxRunes:
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidName, limits.PanelNameMaxRunes)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	return nil
}

func ValidateCommands(cmds []string) error {
	if err := limits.CheckCommands(cmds); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	for i, cmd := range cmds {
		if strings.ContainsAny(cmd, "\r\n") {
			return fmt.Errorf("%w: command %d spans multiple lines", ErrInvalidCommand, i+1)
		}
	}
	return nil
}

func validateLocation(loc Location) error {
	for _, d := range loc.Split {
		if d != Right && d != Down {
			return fmt.Errorf("%w: split direction %q", ErrInvalidLocation, d)
		}
	}
	if strings.ContainsAny(loc.Window+loc.Tab, "/\n\r") {
		return fmt.Errorf("%w: segment contains a separator", ErrInvalidLocation)
	}
	return nil
}
