// Package layout positions a forest of sized boxes for diagram rendering.
// Parents sit centered above their children; a single child sits directly
// below its parent.
package layout

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"teamtree/internal/logging"
)

// ErrLayoutFailure is returned by Compute when the edges do not describe a
// forest over the nodes.
var ErrLayoutFailure = errors.New("layout failed")

// Config holds the geometry constants, in pixels.
type Config struct {
	NodeWidth   float64 `yaml:"node_width" json:"nodeWidth" validate:"gt=0"`
	NodeHeight  float64 `yaml:"node_height" json:"nodeHeight" validate:"gt=0"`
	LevelHeight float64 `yaml:"level_height" json:"levelHeight" validate:"gt=0"`
	NodeSpacing float64 `yaml:"node_spacing" json:"nodeSpacing" validate:"gte=0"`
	MinWidth    float64 `yaml:"min_width" json:"minWidth" validate:"gte=0"`
	Padding     float64 `yaml:"padding" json:"padding" validate:"gte=0"`
	CharWidth   float64 `yaml:"char_width" json:"charWidth" validate:"gt=0"`
}

// Default returns the standard geometry.
func Default() Config {
	return Config{
		NodeWidth:   180,
		NodeHeight:  60,
		LevelHeight: 120,
		NodeSpacing: 15,
		MinWidth:    180,
		Padding:     2,
		CharWidth:   10,
	}
}

// Position is the top-left corner of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a box to place. A zero Width or Height falls back to the
// configured NodeWidth and NodeHeight.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Position Position `json:"position"`
}

// Edge links a parent (Source) to a child (Target). OneToOne marks a parent
// with exactly one child; renderers draw it as a straight connector.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	OneToOne bool   `json:"oneToOne"`
}

// Result is a laid out diagram. Fallback is set when layout failed and the
// nodes carry zero positions.
type Result struct {
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
	Fallback bool   `json:"fallback,omitempty"`
}

// NodeWidth sizes a box for label.
func NodeWidth(label string, cfg Config) float64 {
	w := float64(utf8.RuneCountInString(label))*cfg.CharWidth + cfg.Padding
	return max(cfg.MinWidth, w)
}

// Layout is Compute that never fails: on error or panic it logs and returns
// the input nodes at the origin.
func Layout(ctx context.Context, nodes []Node, edges []Edge, cfg Config) (res Result) {
	if len(nodes) == 0 {
		return Result{Nodes: nodes, Edges: edges}
	}
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("layout panicked", "panic", r)
			res = fallback(nodes, edges)
		}
	}()

	res, err := Compute(nodes, edges, cfg)
	if err != nil {
		logging.FromContext(ctx).Warn("layout failed, using unpositioned nodes", "error", err, "nodes", len(nodes))
		return fallback(nodes, edges)
	}
	return res
}

func fallback(nodes []Node, edges []Edge) Result {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		out[i].Position = Position{}
	}
	return Result{Nodes: out, Edges: edges, Fallback: true}
}

// Compute places every node. Roots are nodes with no incoming edge, laid
// out left to right in input order; children keep the order of their
// edges. Edges naming an unknown node are ignored. The returned nodes keep
// input order and the edges are returned unchanged.
func Compute(nodes []Node, edges []Edge, cfg Config) (Result, error) {
	if len(nodes) == 0 {
		return Result{Nodes: nodes, Edges: edges}, nil
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return Result{}, fmt.Errorf("%w: duplicate node %q", ErrLayoutFailure, n.ID)
		}
		index[n.ID] = i
	}

	children := make([][]int, len(nodes))
	hasParent := make([]bool, len(nodes))
	for _, e := range edges {
		src, ok := index[e.Source]
		if !ok {
			continue
		}
		dst, ok := index[e.Target]
		if !ok {
			continue
		}
		children[src] = append(children[src], dst)
		hasParent[dst] = true
	}

	p := &placer{
		cfg:      cfg,
		nodes:    nodes,
		children: children,
		widths:   make([]float64, len(nodes)),
		state:    make([]visitState, len(nodes)),
		placed:   make([]bool, len(nodes)),
		out:      make([]Node, len(nodes)),
	}
	copy(p.out, nodes)

	cursor := 0.0
	for i := range nodes {
		if hasParent[i] {
			continue
		}
		if cursor > 0 {
			cursor += cfg.NodeSpacing
		}
		w, err := p.subtreeWidth(i)
		if err != nil {
			return Result{}, err
		}
		p.place(i, cursor+w/2, 0)
		cursor += w
	}

	for i, ok := range p.placed {
		if !ok {
			return Result{}, fmt.Errorf("%w: node %q is not reachable from a root", ErrLayoutFailure, nodes[i].ID)
		}
	}
	return Result{Nodes: p.out, Edges: edges}, nil
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	done
)

type placer struct {
	cfg      Config
	nodes    []Node
	children [][]int
	widths   []float64
	state    []visitState
	placed   []bool
	out      []Node
}

func (p *placer) width(i int) float64 {
	if w := p.nodes[i].Width; w > 0 {
		return w
	}
	return p.cfg.NodeWidth
}

func (p *placer) height(i int) float64 {
	if h := p.nodes[i].Height; h > 0 {
		return h
	}
	return p.cfg.NodeHeight
}

// subtreeWidth is the horizontal slice reserved for i and everything below
// it: at least i's own width plus spacing, and at least the sum of its
// children's slices.
func (p *placer) subtreeWidth(i int) (float64, error) {
	switch p.state[i] {
	case done:
		return p.widths[i], nil
	case visiting:
		return 0, fmt.Errorf("%w: cycle through node %q", ErrLayoutFailure, p.nodes[i].ID)
	}
	p.state[i] = visiting

	own := p.width(i) + p.cfg.NodeSpacing
	var sum float64
	for _, c := range p.children[i] {
		w, err := p.subtreeWidth(c)
		if err != nil {
			return 0, err
		}
		sum += w
	}

	p.widths[i] = max(own, sum)
	p.state[i] = done
	return p.widths[i], nil
}

// place centers i on centerX at y and lays out its children one level
// down. Widths are already memoized by subtreeWidth.
func (p *placer) place(i int, centerX, y float64) {
	if p.placed[i] {
		return
	}
	p.placed[i] = true
	p.out[i].Width = p.width(i)
	p.out[i].Height = p.height(i)
	p.out[i].Position = Position{X: centerX - p.width(i)/2, Y: y}

	kids := p.children[i]
	childY := y + p.cfg.LevelHeight
	switch len(kids) {
	case 0:
		return
	case 1:
		p.place(kids[0], centerX, childY)
		return
	}

	gap := p.cfg.NodeSpacing / 2
	total := gap * float64(len(kids)-1)
	for _, c := range kids {
		total += p.widths[c]
	}
	x := centerX - total/2
	for _, c := range kids {
		w := p.widths[c]
		p.place(c, x+w/2, childY)
		x += w + gap
	}
}
