package reconcile

import (
	"fmt"
	"strings"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/panel"
)

type Outcome string

const (
	OutcomeRestored  Outcome = "restored"
	OutcomeAdopted   Outcome = "adopted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Placement says where a restored pane ended up relative to its location.
type Placement string

const (
	PlacedExact     Placement = "exact"
	PlacedNewTab    Placement = "new_tab"
	PlacedNewWindow Placement = "new_window"
)

// Result is the outcome for one record.
type Result struct {
	Name      string
	Outcome   Outcome
	Pane      host.PaneID
	Placement Placement
	Adopted   bool
	Err       error
}

// OK reports whether the panel is live after the restore.
func (r Result) OK() bool {
	switch r.Outcome {
	case OutcomeRestored, OutcomeAdopted, OutcomeSkipped:
		return true
	}
	return false
}

// Report holds one result per record, in record order.
type Report struct {
	Results []Result
}

func (r Report) Live() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Summary renders "N of M panels restored; failures: a (kind: detail), ...".
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d panels restored", r.Live(), len(r.Results))
	failures := r.Failures()
	if len(failures) == 0 {
		return b.String()
	}
	b.WriteString("; failures: ")
	for i, f := range failures {
		if i > 0 {
			b.WriteString(", ")
		}
		detail := "unknown error"
		if f.Err != nil {
			detail = f.Err.Error()
		}
		fmt.Fprintf(&b, "%s (%s)", f.Name, detail)
	}
	return b.String()
}

// Err joins the failures, or returns nil when every panel is live.
func (r Report) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	return &RestoreError{Report: r}
}

// RestoreError wraps a report with failures. It unwraps to every failure
// error so callers can match kinds.
type RestoreError struct {
	Report Report
}

func (e *RestoreError) Error() string { return e.Report.Summary() }

func (e *RestoreError) Unwrap() []error {
	var out []error
	for _, f := range e.Report.Failures() {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	if len(out) == 0 {
		out = append(out, panel.ErrPaneCreateFailed)
	}
	return out
}
