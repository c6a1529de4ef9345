package hierarchy

import "sort"

// buildTrees nests a set of nodes. A node whose parent is in the set goes
// under that parent; every other node is a top-level tree. Parent is only
// filled in when it resolves inside the set, so ParentCount and ChildCount
// always describe the returned structure. Siblings are ordered by name,
// then id. Nodes on a parent cycle never reach the top level and are
// dropped; callers reject cyclic input before assembling.
func buildTrees(nodes []Node) []*Tree {
	byID := make(map[int64]*Tree, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = &Tree{ID: n.ID, Name: n.Name, Children: []*Tree{}}
	}

	var roots []*Tree
	for _, n := range nodes {
		t := byID[n.ID]
		if n.ParentID != nil {
			if parent, ok := byID[*n.ParentID]; ok && parent != t {
				t.Parent = &TeamRef{ID: parent.ID, Name: parent.Name}
				t.ParentCount = 1
				parent.Children = append(parent.Children, t)
				continue
			}
		}
		roots = append(roots, t)
	}

	for _, t := range byID {
		sortTrees(t.Children)
		t.ChildCount = len(t.Children)
	}
	sortTrees(roots)
	if roots == nil {
		roots = []*Tree{}
	}
	return roots
}

func sortTrees(trees []*Tree) {
	sort.Slice(trees, func(i, j int) bool {
		if trees[i].Name != trees[j].Name {
			return trees[i].Name < trees[j].Name
		}
		return trees[i].ID < trees[j].ID
	})
}

// Flatten returns every tree node in pre-order.
func Flatten(trees []*Tree) []*Tree {
	var out []*Tree
	var walk func([]*Tree)
	walk = func(ts []*Tree) {
		for _, t := range ts {
			out = append(out, t)
			walk(t.Children)
		}
	}
	walk(trees)
	return out
}
