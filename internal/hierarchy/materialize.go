package hierarchy

import (
	"sort"
	"strings"
)

// Materialize derives one Record per node.
//
// Roots are expanded breadth-first, each child extending its parent's path
// and name path. Nodes never reached from a root sit on or under a cycle
// and fail the whole call with a *CycleError. Descendant counts come from
// path containment: X.DescendantCount = |{M : X in M.Path}| - 1.
//
// Records are ordered by descendant count (desc), then name, then id.
func Materialize(nodes []Node) ([]Record, error) {
	forest, err := NewForest(nodes)
	if err != nil {
		return nil, err
	}
	return materializeForest(forest)
}

func materializeForest(f *Forest) ([]Record, error) {
	records := make(map[int64]*Record, f.Len())
	pathNames := make(map[int64][]string, f.Len())

	queue := make([]int64, 0, f.Len())
	for _, rootID := range f.Roots() {
		root, _ := f.Node(rootID)
		records[rootID] = &Record{
			ID:       root.ID,
			Name:     root.Name,
			RootID:   root.ID,
			RootName: root.Name,
			Path:     []int64{root.ID},
			IsRoot:   true,
		}
		pathNames[rootID] = []string{root.Name}
		queue = append(queue, rootID)
	}

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		parent := records[parentID]
		for _, childID := range f.Children(parentID) {
			if _, seen := records[childID]; seen {
				return nil, &CycleError{IDs: []int64{childID}}
			}
			child, _ := f.Node(childID)

			path := make([]int64, len(parent.Path)+1)
			copy(path, parent.Path)
			path[len(parent.Path)] = child.ID

			names := make([]string, len(pathNames[parentID])+1)
			copy(names, pathNames[parentID])
			names[len(names)-1] = child.Name

			records[childID] = &Record{
				ID:       child.ID,
				Name:     child.Name,
				ParentID: child.ParentID,
				RootID:   parent.RootID,
				RootName: parent.RootName,
				Depth:    parent.Depth + 1,
				Path:     path,
			}
			pathNames[childID] = names
			queue = append(queue, childID)
		}
	}

	if len(records) < f.Len() {
		var unreached []int64
		for _, n := range f.Nodes() {
			if _, ok := records[n.ID]; !ok {
				unreached = append(unreached, n.ID)
			}
		}
		return nil, &CycleError{IDs: unreached}
	}

	// O(N·D): every record credits each proper ancestor on its path.
	counts := make(map[int64]int, len(records))
	for _, r := range records {
		for _, id := range r.Path[:len(r.Path)-1] {
			counts[id]++
		}
	}

	out := make([]Record, 0, len(records))
	for _, n := range f.Nodes() {
		r := records[n.ID]
		r.PathNames = strings.Join(pathNames[n.ID], PathSeparator)
		r.DescendantCount = counts[n.ID]
		r.IsLeaf = len(f.Children(n.ID)) == 0
		r.SizeCategory = SizeCategory(r.DescendantCount)
		out = append(out, *r)
	}
	SortRecords(out)
	return out, nil
}

// SortRecords orders records by descendant count (desc), name, then id.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.DescendantCount != b.DescendantCount {
			return a.DescendantCount > b.DescendantCount
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}
