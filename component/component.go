// Package component implements ComponentFinder, a disjoint-set structure
// over variant positions used to track connected haplotype blocks during
// read selection and block assembly.
//
// Positions are arbitrary int64 genomic coordinates rather than small dense
// indices, so the node arena is keyed through an llrb.Tree (as
// encoding/bampair/shard_info.go keys its shard registry) rather than a
// plain slice: this keeps the mapping from position to arena slot
// logarithmic without requiring positions to be pre-densified by callers.
package component

import "github.com/biogo/store/llrb"

type posKey struct {
	pos  int64
	slot int
}

// Compare implements llrb.Comparable.
func (k posKey) Compare(other llrb.Comparable) int {
	o := other.(posKey)
	switch {
	case k.pos < o.pos:
		return -1
	case k.pos > o.pos:
		return 1
	default:
		return 0
	}
}

type node struct {
	parent int
	rank   int
	pos    int64
}

// Finder is a disjoint-set (union-find) structure over int64 positions,
// union-by-rank with path compression, giving amortised near-constant Find
// and Merge.
type Finder struct {
	index llrb.Tree
	nodes []node
}

// NewFinder constructs a ComponentFinder whose universe is exactly the given
// positions; each starts in its own singleton component.
func NewFinder(positions []int64) *Finder {
	f := &Finder{nodes: make([]node, 0, len(positions))}
	for _, p := range positions {
		f.addPosition(p)
	}
	return f
}

func (f *Finder) addPosition(pos int64) int {
	slot := len(f.nodes)
	f.nodes = append(f.nodes, node{parent: slot, rank: 0, pos: pos})
	f.index.Insert(posKey{pos: pos, slot: slot})
	return slot
}

func (f *Finder) slotOf(pos int64) (int, bool) {
	v := f.index.Get(posKey{pos: pos})
	if v == nil {
		return 0, false
	}
	return v.(posKey).slot, true
}

// Find returns the canonical representative position for the component
// containing pos. If pos has not been registered, it is added as a new
// singleton component (mirroring the source's dict-of-positions semantics,
// where encountering a new position lazily creates its entry).
func (f *Finder) Find(pos int64) int64 {
	slot, ok := f.slotOf(pos)
	if !ok {
		slot = f.addPosition(pos)
	}
	root := f.findSlot(slot)
	return f.nodes[root].pos
}

func (f *Finder) findSlot(slot int) int {
	root := slot
	for f.nodes[root].parent != root {
		root = f.nodes[root].parent
	}
	// Path compression.
	for f.nodes[slot].parent != root {
		next := f.nodes[slot].parent
		f.nodes[slot].parent = root
		slot = next
	}
	return root
}

// Merge unions the components containing x and y.
func (f *Finder) Merge(x, y int64) {
	xSlot, ok := f.slotOf(x)
	if !ok {
		xSlot = f.addPosition(x)
	}
	ySlot, ok := f.slotOf(y)
	if !ok {
		ySlot = f.addPosition(y)
	}
	xRoot := f.findSlot(xSlot)
	yRoot := f.findSlot(ySlot)
	if xRoot == yRoot {
		return
	}
	switch {
	case f.nodes[xRoot].rank < f.nodes[yRoot].rank:
		f.nodes[xRoot].parent = yRoot
	case f.nodes[xRoot].rank > f.nodes[yRoot].rank:
		f.nodes[yRoot].parent = xRoot
	default:
		f.nodes[yRoot].parent = xRoot
		f.nodes[xRoot].rank++
	}
}

// Same reports whether x and y belong to the same component.
func (f *Finder) Same(x, y int64) bool {
	return f.Find(x) == f.Find(y)
}

// Components returns the set of distinct component representatives.
func (f *Finder) Components() []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for slot := range f.nodes {
		root := f.findSlot(slot)
		rep := f.nodes[root].pos
		if !seen[rep] {
			seen[rep] = true
			out = append(out, rep)
		}
	}
	return out
}
