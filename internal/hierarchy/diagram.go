package hierarchy

import (
	"fmt"
	"strconv"

	"teamtree/internal/layout"
)

// Diagram converts query output into layout input. Nodes are listed in
// pre-order and sized from their names; a parent with a single child marks
// that edge OneToOne.
func Diagram(trees []*Tree, cfg layout.Config) ([]layout.Node, []layout.Edge) {
	flat := Flatten(trees)
	nodes := make([]layout.Node, 0, len(flat))
	var edges []layout.Edge
	for _, t := range flat {
		id := strconv.FormatInt(t.ID, 10)
		nodes = append(nodes, layout.Node{
			ID:     id,
			Label:  t.Name,
			Width:  layout.NodeWidth(t.Name, cfg),
			Height: cfg.NodeHeight,
		})
		for _, c := range t.Children {
			cid := strconv.FormatInt(c.ID, 10)
			edges = append(edges, layout.Edge{
				ID:       fmt.Sprintf("e%s-%s", id, cid),
				Source:   id,
				Target:   cid,
				OneToOne: len(t.Children) == 1,
			})
		}
	}
	return nodes, edges
}
