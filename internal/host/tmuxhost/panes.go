package tmuxhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/identity"
	"github.com/regenrek/panelctx/internal/panel"
)

const listFormat = "#{pane_id}\t#{session_name}\t#{window_index}\t#{window_layout}\t#{" + identity.PaneLabelOption + "}\t#{pane_active}\t#{window_active}\t#{session_attached}\t#{automatic-rename}\t#{window_name}"

// window_name goes last so a name containing a tab stays in one field.
const listFields = 10

// paneRow is one parsed line of list-panes output.
type paneRow struct {
	info    host.PaneInfo
	focused bool
}

func (c *Client) Panes(ctx context.Context) ([]host.PaneInfo, error) {
	rows, err := c.listPanes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]host.PaneInfo, len(rows))
	for i, r := range rows {
		out[i] = r.info
		out[i].Focused = r.focused
	}
	return out, nil
}

func (c *Client) listPanes(ctx context.Context) ([]paneRow, error) {
	out, err := c.output(ctx, "list-panes", "-a", "-F", listFormat)
	if err != nil {
		var te *tmuxError
		if errors.As(err, &te) && (te.mentions("no server running") || te.mentions("error connecting")) {
			return nil, nil
		}
		return nil, err
	}
	return parsePaneRows(out)
}

func parsePaneRows(out string) ([]paneRow, error) {
	var rows []paneRow
	layouts := map[string]map[string][]panel.Direction{}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", listFields)
		if len(fields) != listFields {
			return nil, fmt.Errorf("tmuxhost: unexpected list-panes line %q", line)
		}
		id, session, index, layout, label := fields[0], fields[1], fields[2], fields[3], fields[4]
		key := session + ":" + index
		paths, ok := layouts[key]
		if !ok {
			parsed, err := parseLayout(layout)
			if err != nil {
				slog.Debug("tmuxhost: layout parse failed", slog.String("window", key), slog.Any("err", err))
				parsed = map[string][]panel.Direction{}
			}
			layouts[key] = parsed
			paths = parsed
		}
		rows = append(rows, paneRow{
			info: host.PaneInfo{
				ID:       host.PaneID(id),
				Location: panel.Location{Window: session, Tab: tabOf(index, fields[9], fields[8]), Split: paths[id]},
				Label:    label,
			},
			focused: fields[5] == "1" && fields[6] == "1" && fields[7] != "0",
		})
	}
	return rows, nil
}

// tabOf reports an explicitly named window by its name, so a tag given at
// creation survives a round trip. Automatic names track the running command
// and are not stable, so those windows are reported by index.
func tabOf(index, name, autoRename string) string {
	if autoRename == "1" || name == "" || isIndex(name) || strings.ContainsAny(name, "/\t\n\r") {
		return index
	}
	return name
}
