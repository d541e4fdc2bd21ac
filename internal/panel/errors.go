package panel

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateName       = errors.New("duplicate name")
	ErrInvalidName         = errors.New("invalid name")
	ErrEmptyLocation       = errors.New("empty location")
	ErrInvalidCommand      = errors.New("invalid command")
	ErrInvalidLocation     = errors.New("invalid location")
	ErrNotFound            = errors.New("panel not found")
	ErrNoMatch             = errors.New("no match")
	ErrAmbiguousMatch      = errors.New("ambiguous match")
	ErrStoreCorrupt        = errors.New("store corrupt")
	ErrStoreWriteError     = errors.New("store write error")
	ErrUnsupportedVersion  = errors.New("unsupported version")
	ErrPaneCreateFailed    = errors.New("pane create failed")
	ErrProcessSpawnFailed  = errors.New("process spawn failed")
	ErrCommandReplayFailed = errors.New("command replay failed")
	ErrRestoreCancelled    = errors.New("restore cancelled")
	ErrClosed              = errors.New("controller closed")
)

// Kind is the stable snake_case name of an error kind, used as the CLI error code.
type Kind string

const (
	KindUnknown            Kind = "internal"
	KindDuplicateName      Kind = "duplicate_name"
	KindInvalidName        Kind = "invalid_name"
	KindEmptyLocation      Kind = "empty_location"
	KindInvalidCommand     Kind = "invalid_command"
	KindInvalidLocation    Kind = "invalid_location"
	KindNotFound           Kind = "not_found"
	KindNoMatch            Kind = "no_match"
	KindAmbiguousMatch     Kind = "ambiguous_match"
	KindStoreCorrupt       Kind = "store_corrupt"
	KindStoreWriteError    Kind = "store_write_error"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindPaneCreateFailed   Kind = "pane_create_failed"
	KindProcessSpawnFailed Kind = "process_spawn_failed"
	KindCommandReplay      Kind = "command_replay_failed"
	KindRestoreCancelled   Kind = "restore_cancelled"
	KindClosed             Kind = "closed"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrDuplicateName, KindDuplicateName},
	{ErrInvalidName, KindInvalidName},
	{ErrEmptyLocation, KindEmptyLocation},
	{ErrInvalidCommand, KindInvalidCommand},
	{ErrInvalidLocation, KindInvalidLocation},
	{ErrNotFound, KindNotFound},
	{ErrNoMatch, KindNoMatch},
	{ErrAmbiguousMatch, KindAmbiguousMatch},
	{ErrStoreCorrupt, KindStoreCorrupt},
	{ErrStoreWriteError, KindStoreWriteError},
	{ErrUnsupportedVersion, KindUnsupportedVersion},
	{ErrPaneCreateFailed, KindPaneCreateFailed},
	{ErrProcessSpawnFailed, KindProcessSpawnFailed},
	{ErrCommandReplayFailed, KindCommandReplay},
	{ErrRestoreCancelled, KindRestoreCancelled},
	{ErrClosed, KindClosed},
}

// KindOf maps err to the first matching kind, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// AmbiguousError lists the equally ranked names for a query.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous match for %q: %s", e.Query, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguousMatch }
