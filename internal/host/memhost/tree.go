package memhost

import (
	"slices"

	"github.com/regenrek/panelctx/internal/panel"
)

// node is a layout tree node: a leaf pane or a container of children laid
// out in one direction.
type node struct {
	pane     panel.PaneID
	dir      panel.Direction
	children []*node
	parent   *node
}

func leaf(id panel.PaneID) *node { return &node{pane: id} }

func (n *node) isLeaf() bool { return len(n.children) == 0 }

// paths assigns creation paths: the first child of a container shares the
// container's path, child i extends the path of child i-1 by the direction.
func (n *node) paths(base []panel.Direction, out map[panel.PaneID][]panel.Direction) {
	if n.isLeaf() {
		out[n.pane] = slices.Clone(base)
		return
	}
	cur := base
	for i, child := range n.children {
		if i > 0 {
			cur = append(slices.Clone(cur), n.dir)
		}
		child.paths(cur, out)
	}
}

func (n *node) find(id panel.PaneID) *node {
	if n.isLeaf() {
		if n.pane == id {
			return n
		}
		return nil
	}
	for _, c := range n.children {
		if hit := c.find(id); hit != nil {
			return hit
		}
	}
	return nil
}

func (n *node) leaves(out []panel.PaneID) []panel.PaneID {
	if n.isLeaf() {
		return append(out, n.pane)
	}
	for _, c := range n.children {
		out = c.leaves(out)
	}
	return out
}

func (n *node) indexOf(child *node) int {
	return slices.Index(n.children, child)
}

// split inserts a new leaf after target in dir and returns the new root.
func split(root, target *node, id panel.PaneID, dir panel.Direction) *node {
	fresh := leaf(id)
	if p := target.parent; p != nil && p.dir == dir {
		i := p.indexOf(target)
		fresh.parent = p
		p.children = slices.Insert(p.children, i+1, fresh)
		return root
	}
	box := &node{dir: dir, parent: target.parent}
	if box.parent != nil {
		box.parent.children[box.parent.indexOf(target)] = box
	}
	target.parent = box
	fresh.parent = box
	box.children = []*node{target, fresh}
	if target == root {
		return box
	}
	return root
}

// remove drops target and collapses single-child containers. It returns the
// new root, nil when the tree is empty.
func remove(root, target *node) *node {
	p := target.parent
	if p == nil {
		return nil
	}
	at := p.indexOf(target)
	p.children = slices.Delete(p.children, at, at+1)
	if len(p.children) > 1 {
		return root
	}
	only := p.children[0]
	gp := p.parent
	only.parent = gp
	if gp == nil {
		return only
	}
	i := gp.indexOf(p)
	if !only.isLeaf() && only.dir == gp.dir {
		for _, c := range only.children {
			c.parent = gp
		}
		gp.children = slices.Concat(gp.children[:i], only.children, gp.children[i+1:])
		return root
	}
	gp.children[i] = only
	return root
}
