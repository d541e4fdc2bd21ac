package output

import (
	"github.com/regenrek/panelctx/internal/controller"
	"github.com/regenrek/panelctx/internal/navigator"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/reconcile"
)

type PanelView struct {
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Commands []string `json:"commands"`
	Status   string   `json:"status"`
	Pane     string   `json:"pane,omitempty"`
	Failure  string   `json:"failure,omitempty"`
}

func Panel(p panel.Panel) PanelView {
	cmds := p.Commands
	if cmds == nil {
		cmds = []string{}
	}
	return PanelView{
		Name:     p.Name,
		Location: p.Location.String(),
		Commands: cmds,
		Status:   string(p.Status),
		Pane:     string(p.LiveRef),
		Failure:  p.Failure,
	}
}

func Panels(ps []panel.Panel) []PanelView {
	out := make([]PanelView, 0, len(ps))
	for _, p := range ps {
		out = append(out, Panel(p))
	}
	return out
}

type FocusView struct {
	Name string `json:"name"`
	Pane string `json:"pane"`
}

func Focus(e navigator.Entry) FocusView {
	return FocusView{Name: e.Name, Pane: string(e.Pane)}
}

type RenameView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ResultView struct {
	Name      string `json:"name"`
	Outcome   string `json:"outcome"`
	Pane      string `json:"pane,omitempty"`
	Placement string `json:"placement,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ReportView struct {
	Total    int          `json:"total"`
	Live     int          `json:"live"`
	Summary  string       `json:"summary"`
	Results  []ResultView `json:"results"`
	Failures int          `json:"failures"`
}

func Report(r reconcile.Report) ReportView {
	view := ReportView{
		Total:    len(r.Results),
		Live:     r.Live(),
		Summary:  r.Summary(),
		Results:  make([]ResultView, 0, len(r.Results)),
		Failures: len(r.Failures()),
	}
	for _, res := range r.Results {
		rv := ResultView{
			Name:      res.Name,
			Outcome:   string(res.Outcome),
			Pane:      string(res.Pane),
			Placement: string(res.Placement),
		}
		if res.Err != nil {
			rv.Code = string(panel.KindOf(res.Err))
			rv.Error = res.Err.Error()
		}
		view.Results = append(view.Results, rv)
	}
	return view
}

type MergeView struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

func Merge(m controller.MergeResult) MergeView {
	return MergeView{Added: m.Added, Updated: m.Updated, Removed: m.Removed}
}

// Version is the payload of the version command.
type Version struct {
	Version string `json:"version"`
}
