package hierarchy

import (
	"fmt"
	"sort"
)

// Forest is an arena of nodes indexed by id. Parent and child links are
// id references, never pointers.
type Forest struct {
	nodes    []Node // sorted by id
	index    map[int64]int
	children map[int64][]int64 // ordered by name, then id
	roots    []int64           // ordered by name, then id
}

// NewForest indexes nodes. It rejects duplicate ids and parents that are
// not in the set, but does not check for cycles (see CheckAcyclic).
func NewForest(nodes []Node) (*Forest, error) {
	f := &Forest{
		nodes:    make([]Node, len(nodes)),
		index:    make(map[int64]int, len(nodes)),
		children: make(map[int64][]int64),
	}
	copy(f.nodes, nodes)
	sort.Slice(f.nodes, func(i, j int) bool { return f.nodes[i].ID < f.nodes[j].ID })

	for i, n := range f.nodes {
		if _, dup := f.index[n.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, n.ID)
		}
		f.index[n.ID] = i
	}

	for _, n := range f.nodes {
		if n.ParentID == nil {
			f.roots = append(f.roots, n.ID)
			continue
		}
		if _, ok := f.index[*n.ParentID]; !ok {
			return nil, fmt.Errorf("%w: team %d references %d", ErrUnknownParent, n.ID, *n.ParentID)
		}
		f.children[*n.ParentID] = append(f.children[*n.ParentID], n.ID)
	}

	f.sortByName(f.roots)
	for _, kids := range f.children {
		f.sortByName(kids)
	}
	return f, nil
}

func (f *Forest) sortByName(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := f.nodes[f.index[ids[i]]], f.nodes[f.index[ids[j]]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// Len returns the number of nodes
func (f *Forest) Len() int { return len(f.nodes) }

// Node returns the node with the given id
func (f *Forest) Node(id int64) (Node, bool) {
	i, ok := f.index[id]
	if !ok {
		return Node{}, false
	}
	return f.nodes[i], true
}

// Nodes returns every node ordered by id
func (f *Forest) Nodes() []Node { return f.nodes }

// Roots returns the ids of nodes without a parent
func (f *Forest) Roots() []int64 { return f.roots }

// Children returns the ids of the direct children of id
func (f *Forest) Children(id int64) []int64 { return f.children[id] }

// CheckAcyclic reports ErrCycleDetected when the parent links contain a
// cycle. Every node has at most one parent, so any cycle in the undirected
// parent graph is a directed one.
func (f *Forest) CheckAcyclic() error {
	ids := make([]int64, len(f.nodes))
	for i, n := range f.nodes {
		ids[i] = n.ID
	}
	uf := newUnionFind(ids)
	var cyclic []int64
	for _, n := range f.nodes {
		if n.ParentID != nil && !uf.union(n.ID, *n.ParentID) {
			cyclic = append(cyclic, n.ID)
		}
	}
	if len(cyclic) > 0 {
		return &CycleError{IDs: cyclic}
	}
	return nil
}

// WouldCycle reports whether making newParent the parent of id would create
// a cycle, i.e. whether newParent lies in id's own subtree. With id's
// current parent link removed, id's component is exactly its subtree.
func (f *Forest) WouldCycle(id, newParent int64) bool {
	if id == newParent {
		return true
	}
	ids := make([]int64, len(f.nodes))
	for i, n := range f.nodes {
		ids[i] = n.ID
	}
	uf := newUnionFind(ids)
	for _, n := range f.nodes {
		if n.ID == id || n.ParentID == nil {
			continue
		}
		uf.union(n.ID, *n.ParentID)
	}
	return uf.find(id) == uf.find(newParent)
}
