// Package topology models the static tree-shaped overlay network that the
// execution core is replicated across, and precomputes each rank's subtree
// rank set once at load time (spec.md §3 "Topology", §9 "Recursive topology
// walk: ... do not rewalk on each message").
package topology

import (
	"fmt"

	"github.com/pithecene-io/derp/idset"
)

// Node is an immutable node of the static overlay tree.
type Node struct {
	Rank     idset.Rank
	Children []*Node
}

// Tree is the whole overlay topology plus, per rank, its precomputed
// subtree idset and parent pointer.
type Tree struct {
	Root     *Node
	parent   map[idset.Rank]idset.Rank
	hasPar   map[idset.Rank]bool
	subtree  map[idset.Rank]idset.Set
	children map[idset.Rank][]*Node
}

// Build walks root once, validating that every rank appears exactly once,
// and precomputes the subtree idset for every rank in the tree.
func Build(root *Node) (*Tree, error) {
	t := &Tree{
		Root:     root,
		parent:   make(map[idset.Rank]idset.Rank),
		hasPar:   make(map[idset.Rank]bool),
		subtree:  make(map[idset.Rank]idset.Set),
		children: make(map[idset.Rank][]*Node),
	}
	seen := make(map[idset.Rank]bool)
	if _, err := t.walk(root, seen); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) walk(n *Node, seen map[idset.Rank]bool) (idset.Set, error) {
	if seen[n.Rank] {
		return idset.Set{}, fmt.Errorf("topology: rank %d appears more than once", n.Rank)
	}
	seen[n.Rank] = true

	subtree := idset.New(n.Rank)
	t.children[n.Rank] = n.Children
	for _, c := range n.Children {
		t.parent[c.Rank] = n.Rank
		t.hasPar[c.Rank] = true
		childSubtree, err := t.walk(c, seen)
		if err != nil {
			return idset.Set{}, err
		}
		subtree = subtree.Union(childSubtree)
	}
	t.subtree[n.Rank] = subtree
	return subtree, nil
}

// Subtree returns the precomputed subtree idset (self + all descendants)
// for r. Returns the empty set if r is not part of the tree.
func (t *Tree) Subtree(r idset.Rank) idset.Set {
	return t.subtree[r]
}

// Parent returns the parent rank of r and whether r has one (false for
// root).
func (t *Tree) Parent(r idset.Rank) (idset.Rank, bool) {
	p, ok := t.hasPar[r]
	if !ok || !p {
		return 0, false
	}
	return t.parent[r], true
}

// IsRoot reports whether r is the root of the tree.
func (t *Tree) IsRoot(r idset.Rank) bool {
	return r == t.Root.Rank
}

// Children returns the immediate children of r, in topology order.
func (t *Tree) Children(r idset.Rank) []*Node {
	return t.children[r]
}

// IsLCA reports whether self is the lowest common ancestor of a job
// spanning ranks — the rank whose subtree is the smallest that fully
// contains ranks (spec.md GLOSSARY "LCA"): self's subtree contains ranks
// and no child's subtree does.
func (t *Tree) IsLCA(self idset.Rank, ranks idset.Set) bool {
	if !ranks.Subset(t.Subtree(self)) {
		return false
	}
	for _, c := range t.children[self] {
		if ranks.Subset(t.Subtree(c.Rank)) {
			return false
		}
	}
	return true
}
