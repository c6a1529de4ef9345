package hierarchy

// unionFind implements union-find with path compression and union by rank
type unionFind struct {
	parent map[int64]int64
	rank   map[int64]int
}

// newUnionFind creates a unionFind where each id is its own component
func newUnionFind(ids []int64) *unionFind {
	uf := &unionFind{
		parent: make(map[int64]int64, len(ids)),
		rank:   make(map[int64]int, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
	}
	return uf
}

// find returns the root of the component containing id, with path compression
func (uf *unionFind) find(id int64) int64 {
	parent, ok := uf.parent[id]
	if !ok {
		return id
	}
	if parent != id {
		root := uf.find(parent)
		uf.parent[id] = root
		return root
	}
	return id
}

// union merges the components containing a and b. Returns true if they were separate.
func (uf *unionFind) union(a, b int64) bool {
	rootA := uf.find(a)
	rootB := uf.find(b)
	if rootA == rootB {
		return false
	}

	switch rankA, rankB := uf.rank[rootA], uf.rank[rootB]; {
	case rankA < rankB:
		uf.parent[rootA] = rootB
	case rankA > rankB:
		uf.parent[rootB] = rootA
	default:
		uf.parent[rootB] = rootA
		uf.rank[rootA]++
	}
	return true
}
