package hierarchy

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"teamtree/internal/logging"
	"teamtree/internal/metrics"
)

// Query shapes and paths, as reported to metrics.
const (
	shapeFull   = "full"
	shapeScoped = "scoped"
	pathFast    = "fast"
	pathSlow    = "slow"
)

// Engine answers hierarchy queries. The fast methods read the materialized
// cache, the Slow variants walk live data. Both return the same trees.
type Engine struct {
	source  Source
	mat     *Materializer
	metrics *metrics.Metrics
}

// NewEngine builds an engine reading live data from source and cached
// records through mat. m may be nil.
func NewEngine(source Source, mat *Materializer, m *metrics.Metrics) *Engine {
	return &Engine{source: source, mat: mat, metrics: m}
}

// FullHierarchy returns one tree per root team.
func (e *Engine) FullHierarchy(ctx context.Context) ([]*Tree, error) {
	ctx, span := e.startQuery(ctx, "FullHierarchy", shapeFull, pathFast, "")
	defer span.End()
	records, err := e.mat.Records(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("reading tree view: %w", err)
	}
	return buildTrees(recordNodes(records)), nil
}

// ScopedHierarchy returns the trees formed by the first team named name
// together with its ancestors and descendants. An empty name or a name
// with no match yields no trees.
func (e *Engine) ScopedHierarchy(ctx context.Context, name string) ([]*Tree, error) {
	ctx, span := e.startQuery(ctx, "ScopedHierarchy", shapeScoped, pathFast, name)
	defer span.End()
	if name == "" {
		return []*Tree{}, nil
	}
	var records []Record
	err := e.mat.withCache(ctx, func() (err error) {
		records, err = e.mat.cache.Scope(ctx, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scoping tree view to %q: %w", name, err)
	}
	logging.FromContext(ctx).Debug("scoped hierarchy", "team", name, "teams", len(records))
	return buildTrees(recordNodes(records)), nil
}

// FullHierarchySlow builds the full hierarchy from live data, rejecting
// cyclic parent links.
func (e *Engine) FullHierarchySlow(ctx context.Context) ([]*Tree, error) {
	ctx, span := e.startQuery(ctx, "FullHierarchySlow", shapeFull, pathSlow, "")
	defer span.End()
	nodes, err := e.source.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading teams: %w", err)
	}
	forest, err := NewForest(nodes)
	if err != nil {
		return nil, err
	}
	if err := forest.CheckAcyclic(); err != nil {
		return nil, err
	}
	return buildTrees(forest.Nodes()), nil
}

// ScopedHierarchySlow is ScopedHierarchy computed by walking parents and
// children one query at a time.
func (e *Engine) ScopedHierarchySlow(ctx context.Context, name string) ([]*Tree, error) {
	ctx, span := e.startQuery(ctx, "ScopedHierarchySlow", shapeScoped, pathSlow, name)
	defer span.End()
	if name == "" {
		return []*Tree{}, nil
	}
	target, err := e.source.NodeByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding team %q: %w", name, err)
	}
	if target == nil {
		return []*Tree{}, nil
	}

	ancestors, err := e.ancestors(ctx, *target)
	if err != nil {
		return nil, err
	}
	descendants, err := e.descendants(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(ancestors)+1+len(descendants))
	nodes = append(nodes, ancestors...)
	nodes = append(nodes, *target)
	nodes = append(nodes, descendants...)
	return buildTrees(nodes), nil
}

func (e *Engine) startQuery(ctx context.Context, op, shape, path, name string) (context.Context, trace.Span) {
	e.metrics.ObserveQuery(shape, path)
	attrs := []attribute.KeyValue{
		attribute.String("query.shape", shape),
		attribute.String("query.path", path),
	}
	if name != "" {
		attrs = append(attrs, attribute.String("team.name", name))
	}
	return tracer.Start(ctx, "Engine."+op, trace.WithAttributes(attrs...))
}

// ancestors follows parent ids upward from n.
func (e *Engine) ancestors(ctx context.Context, n Node) ([]Node, error) {
	var out []Node
	visited := map[int64]bool{n.ID: true}
	for n.ParentID != nil {
		pid := *n.ParentID
		if visited[pid] {
			return nil, &CycleError{IDs: sortedKeys(visited)}
		}
		visited[pid] = true
		parent, err := e.source.NodeByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("loading team %d: %w", pid, err)
		}
		if parent == nil {
			break
		}
		out = append(out, *parent)
		n = *parent
	}
	return out, nil
}

// descendants collects everything below id, one level at a time.
func (e *Engine) descendants(ctx context.Context, id int64) ([]Node, error) {
	var out []Node
	visited := map[int64]bool{id: true}
	queue := []int64{id}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]
		children, err := e.source.Children(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("loading children of team %d: %w", current, err)
		}
		for _, c := range children {
			if visited[c.ID] {
				return nil, &CycleError{IDs: []int64{c.ID}}
			}
			visited[c.ID] = true
			out = append(out, c)
			queue = append(queue, c.ID)
		}
	}
	return out, nil
}

func recordNodes(records []Record) []Node {
	nodes := make([]Node, len(records))
	for i := range records {
		nodes[i] = records[i].node()
	}
	return nodes
}

func sortedKeys(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
