package tmuxhost

import (
	"fmt"
	"slices"
	"strings"

	"github.com/regenrek/panelctx/internal/panel"
)

// layoutCell is one cell of a #{window_layout} string.
type layoutCell struct {
	pane     string // numeric id without the % prefix; empty for containers
	dir      panel.Direction
	children []*layoutCell
}

// parseLayout parses a tmux window layout such as
// "b25d,80x24,0,0{40x24,0,0,1,39x24,41,0[39x12,41,0,2,39x11,41,13,3]}" and
// returns the creation path of every pane keyed by "%<id>".
func parseLayout(raw string) (map[string][]panel.Direction, error) {
	raw = strings.TrimSpace(raw)
	comma := strings.IndexByte(raw, ',')
	if comma != 4 || !isHex(raw[:4]) {
		return nil, fmt.Errorf("tmuxhost: layout %q: missing checksum", raw)
	}
	p := &layoutParser{s: raw[comma+1:]}
	cell, err := p.cell()
	if err != nil {
		return nil, fmt.Errorf("tmuxhost: layout %q: %w", raw, err)
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("tmuxhost: layout %q: trailing data at %d", raw, p.pos)
	}
	out := map[string][]panel.Direction{}
	cell.paths(nil, out)
	return out, nil
}

func (c *layoutCell) paths(base []panel.Direction, out map[string][]panel.Direction) {
	if len(c.children) == 0 {
		out["%"+c.pane] = slices.Clone(base)
		return
	}
	cur := base
	for i, child := range c.children {
		if i > 0 {
			cur = append(slices.Clone(cur), c.dir)
		}
		child.paths(cur, out)
	}
}

type layoutParser struct {
	s   string
	pos int
}

// cell parses "WxH,X,Y" followed by ",ID" for a pane or a bracketed list of
// child cells: {} lays children left to right, [] top to bottom.
func (p *layoutParser) cell() (*layoutCell, error) {
	for _, sep := range []byte{'x', ',', ',', 0} {
		if _, err := p.number(); err != nil {
			return nil, err
		}
		if sep == 0 {
			break
		}
		if err := p.expect(sep); err != nil {
			return nil, err
		}
	}
	var closer byte
	c := &layoutCell{}
	switch p.peek() {
	case ',':
		p.pos++
		id, err := p.number()
		if err != nil {
			return nil, err
		}
		c.pane = id
		return c, nil
	case '{':
		c.dir, closer = panel.Right, '}'
	case '[':
		c.dir, closer = panel.Down, ']'
	default:
		return nil, fmt.Errorf("unexpected %q at %d", p.peek(), p.pos)
	}
	p.pos++
	for {
		child, err := p.cell()
		if err != nil {
			return nil, err
		}
		c.children = append(c.children, child)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err := p.expect(closer); err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (p *layoutParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *layoutParser) expect(b byte) error {
	if p.peek() != b {
		return fmt.Errorf("expected %q at %d", b, p.pos)
	}
	p.pos++
	return nil
}

func (p *layoutParser) number() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return "", fmt.Errorf("expected number at %d", start)
	}
	return p.s[start:p.pos], nil
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
