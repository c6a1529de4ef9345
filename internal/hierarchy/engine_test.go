package hierarchy

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"teamtree/internal/metrics"
)

func TestFullHierarchy_Scenario(t *testing.T) {
	ctx := context.Background()
	engine, mat, _ := newTestEngine(t, scenarioNodes())
	if err := mat.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	trees, err := engine.FullHierarchy(ctx)
	if err != nil {
		t.Fatalf("FullHierarchy: %v", err)
	}
	if len(trees) != 1 || trees[0].ID != 1 {
		t.Fatalf("roots = %+v, want single root 1", trees)
	}
	root := trees[0]
	if root.Parent != nil || root.ParentCount != 0 {
		t.Errorf("root has parent %+v", root.Parent)
	}
	if root.ChildCount != 2 || root.Children[0].ID != 2 || root.Children[1].ID != 3 {
		t.Errorf("root children = %+v, want [2 3]", root.Children)
	}
	platform := root.Children[0]
	if len(platform.Children) != 1 || platform.Children[0].ID != 4 {
		t.Errorf("platform children = %+v, want [4]", platform.Children)
	}
	if platform.Parent == nil || platform.Parent.ID != 1 || platform.Parent.Name != "Engineering" {
		t.Errorf("platform parent = %+v", platform.Parent)
	}
	if leaf := platform.Children[0]; leaf.Children == nil || leaf.ChildCount != 0 {
		t.Errorf("leaf children should be empty, not nil: %+v", leaf)
	}
}

func TestScopedHierarchy_Scenario(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, scenarioNodes())

	for _, query := range []func(context.Context, string) ([]*Tree, error){
		engine.ScopedHierarchy, engine.ScopedHierarchySlow,
	} {
		trees, err := query(ctx, "Storage")
		if err != nil {
			t.Fatalf("scoped: %v", err)
		}
		if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 2, 4}) {
			t.Errorf("scoped ids = %v, want [1 2 4]", got)
		}
		if len(trees) != 1 || trees[0].ID != 1 {
			t.Errorf("top level = %+v, want node 1", trees)
		}
		if trees[0].ChildCount != 1 {
			t.Errorf("root childCount = %d, want 1 (node 3 excluded)", trees[0].ChildCount)
		}
	}
}

func TestScopedHierarchy_MiddleNodeHasNoOutsideParent(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, scenarioNodes())
	trees, err := engine.ScopedHierarchy(ctx, "Platform")
	if err != nil {
		t.Fatalf("ScopedHierarchy: %v", err)
	}
	if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 2, 4}) {
		t.Errorf("ids = %v, want [1 2 4]", got)
	}

	// A leaf-level target whose parent is outside the set cannot happen,
	// but a root target has no parent at all.
	trees, _ = engine.ScopedHierarchy(ctx, "Engineering")
	if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 2, 3, 4}) {
		t.Errorf("ids = %v, want all", got)
	}
}

func TestScopedHierarchy_Misses(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, scenarioNodes())
	for _, name := range []string{"", "   ", "Nobody"} {
		fast, err := engine.ScopedHierarchy(ctx, name)
		if err != nil {
			t.Fatalf("ScopedHierarchy(%q): %v", name, err)
		}
		slow, err := engine.ScopedHierarchySlow(ctx, name)
		if err != nil {
			t.Fatalf("ScopedHierarchySlow(%q): %v", name, err)
		}
		if fast == nil || len(fast) != 0 || slow == nil || len(slow) != 0 {
			t.Errorf("%q: fast=%v slow=%v, want empty non-nil", name, fast, slow)
		}
	}
}

func TestScopedHierarchy_WhitespaceNameIsAName(t *testing.T) {
	ctx := context.Background()
	nodes := append(scenarioNodes(), node(5, "  ", 2))
	engine, _, _ := newTestEngine(t, nodes)
	for _, query := range []func(context.Context, string) ([]*Tree, error){
		engine.ScopedHierarchy, engine.ScopedHierarchySlow,
	} {
		trees, err := query(ctx, "  ")
		if err != nil {
			t.Fatalf("scoped query: %v", err)
		}
		if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 2, 5}) {
			t.Errorf("scoped ids = %v, want [1 2 5]", got)
		}
	}
}

func TestScopedHierarchy_DuplicateNamesPickLowestID(t *testing.T) {
	ctx := context.Background()
	nodes := []Node{
		node(1, "Root", 0),
		node(2, "Ops", 1),
		node(3, "Other", 0),
		node(4, "Ops", 3),
	}
	engine, _, _ := newTestEngine(t, nodes)
	trees, err := engine.ScopedHierarchy(ctx, "Ops")
	if err != nil {
		t.Fatalf("ScopedHierarchy: %v", err)
	}
	if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", got)
	}
}

func TestFullHierarchy_Empty(t *testing.T) {
	ctx := context.Background()
	engine, mat, _ := newTestEngine(t, nil)
	if err := mat.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	trees, err := engine.FullHierarchy(ctx)
	if err != nil {
		t.Fatalf("FullHierarchy: %v", err)
	}
	if trees == nil || len(trees) != 0 {
		t.Errorf("trees = %v, want []", trees)
	}
}

func TestFullHierarchy_RoundTrip(t *testing.T) {
	ctx := context.Background()
	nodes := randomForest(150, 7)
	engine, _, _ := newTestEngine(t, nodes)
	trees, err := engine.FullHierarchy(ctx)
	if err != nil {
		t.Fatalf("FullHierarchy: %v", err)
	}

	seen := map[int64]int{}
	var walk func(ts []*Tree, parent *int64)
	walk = func(ts []*Tree, parent *int64) {
		for _, tr := range ts {
			seen[tr.ID]++
			var want *int64
			for _, n := range nodes {
				if n.ID == tr.ID {
					want = n.ParentID
				}
			}
			if !reflect.DeepEqual(want, parent) {
				t.Errorf("node %d nested under %v, parentId %v", tr.ID, parent, want)
			}
			if tr.ChildCount != len(tr.Children) {
				t.Errorf("node %d childCount %d != %d", tr.ID, tr.ChildCount, len(tr.Children))
			}
			id := tr.ID
			walk(tr.Children, &id)
		}
	}
	walk(trees, nil)

	if len(seen) != len(nodes) {
		t.Errorf("saw %d ids, want %d", len(seen), len(nodes))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("node %d appears %d times", id, n)
		}
	}
}

func TestScopedHierarchy_Correctness(t *testing.T) {
	ctx := context.Background()
	nodes := randomForest(100, 11)
	engine, _, _ := newTestEngine(t, nodes)
	forest := mustForest(t, nodes)

	for _, target := range nodes[:25] {
		want := scopeIDs(forest, target.Name)

		trees, err := engine.ScopedHierarchy(ctx, target.Name)
		if err != nil {
			t.Fatalf("ScopedHierarchy(%q): %v", target.Name, err)
		}
		got := Flatten(trees)
		if len(got) != len(want) {
			t.Errorf("%q: %d nodes, want %d", target.Name, len(got), len(want))
		}
		for _, tr := range got {
			if !want[tr.ID] {
				t.Errorf("%q: unexpected node %d", target.Name, tr.ID)
			}
			if tr.Parent != nil && !want[tr.Parent.ID] {
				t.Errorf("%q: node %d parent %d outside result", target.Name, tr.ID, tr.Parent.ID)
			}
			if (tr.Parent != nil) != (tr.ParentCount == 1) {
				t.Errorf("%q: node %d parentCount %d with parent %v", target.Name, tr.ID, tr.ParentCount, tr.Parent)
			}
		}
	}
}

func TestFastAndSlowPathsAgree(t *testing.T) {
	ctx := context.Background()
	nodes := randomForest(90, 3)
	engine, _, _ := newTestEngine(t, nodes)

	fast, err := engine.FullHierarchy(ctx)
	if err != nil {
		t.Fatalf("FullHierarchy: %v", err)
	}
	slow, err := engine.FullHierarchySlow(ctx)
	if err != nil {
		t.Fatalf("FullHierarchySlow: %v", err)
	}
	if diff := cmp.Diff(slow, fast); diff != "" {
		t.Errorf("full hierarchy differs between paths (-slow +fast):\n%s", diff)
	}

	for _, n := range nodes[:20] {
		fast, err := engine.ScopedHierarchy(ctx, n.Name)
		if err != nil {
			t.Fatalf("ScopedHierarchy: %v", err)
		}
		slow, err := engine.ScopedHierarchySlow(ctx, n.Name)
		if err != nil {
			t.Fatalf("ScopedHierarchySlow: %v", err)
		}
		if diff := cmp.Diff(slow, fast); diff != "" {
			t.Errorf("scoped %q differs between paths (-slow +fast):\n%s", n.Name, diff)
		}
	}
}

func TestSlowPathDetectsCycles(t *testing.T) {
	ctx := context.Background()
	nodes := []Node{node(1, "root", 0), node(2, "a", 3), node(3, "b", 2)}
	engine, _, _ := newTestEngine(t, nodes)

	if _, err := engine.FullHierarchySlow(ctx); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("FullHierarchySlow: err = %v, want cycle", err)
	}
	if _, err := engine.ScopedHierarchySlow(ctx, "a"); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("ScopedHierarchySlow: err = %v, want cycle", err)
	}
	// The fast path rebuilds the cache, which fails the same way.
	if _, err := engine.FullHierarchy(ctx); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("FullHierarchy: err = %v, want cycle", err)
	}
}

func TestFastPathRebuildsMissingCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(scenarioNodes())
	m := metrics.New()
	mat := NewMaterializer(store, store, m)
	engine := NewEngine(store, mat, m)

	trees, err := engine.FullHierarchy(ctx)
	if err != nil {
		t.Fatalf("FullHierarchy: %v", err)
	}
	if len(flatIDs(trees)) != 4 {
		t.Errorf("got %v", flatIDs(trees))
	}
	if store.creates != 1 {
		t.Errorf("cache creates = %d, want 1", store.creates)
	}
	if _, err := engine.ScopedHierarchy(ctx, "Storage"); err != nil {
		t.Fatalf("ScopedHierarchy: %v", err)
	}

	expected := `
# HELP teamtree_view_lazy_rebuilds_total Fast-path queries that found no tree view and rebuilt it.
# TYPE teamtree_view_lazy_rebuilds_total counter
teamtree_view_lazy_rebuilds_total 1
`
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "teamtree_view_lazy_rebuilds_total"); err != nil {
		t.Error(err)
	}
	n, err := testutil.GatherAndCount(m.Registry, "teamtree_hierarchy_queries_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("query series = %d, want 2", n)
	}
}

func TestFastPathServesStaleCache(t *testing.T) {
	ctx := context.Background()
	engine, mat, store := newTestEngine(t, scenarioNodes())
	if err := mat.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := store.CreateNode(ctx, "Late", ptr(3)); err != nil {
		t.Fatal(err)
	}

	fast, _ := engine.FullHierarchy(ctx)
	slow, _ := engine.FullHierarchySlow(ctx)
	if len(flatIDs(fast)) != 4 || len(flatIDs(slow)) != 5 {
		t.Errorf("fast=%v slow=%v, want cache to lag until refresh", flatIDs(fast), flatIDs(slow))
	}
	if err := mat.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	fast, _ = engine.FullHierarchy(ctx)
	if len(flatIDs(fast)) != 5 {
		t.Errorf("after refresh fast = %v", flatIDs(fast))
	}
}

// scopeIDs is the relevant set of the lowest-id team named name, computed
// directly from the forest links.
func scopeIDs(f *Forest, name string) map[int64]bool {
	set := map[int64]bool{}
	var first Node
	found := false
	for _, n := range f.Nodes() {
		if n.Name == name {
			first, found = n, true
			break
		}
	}
	if !found {
		return set
	}
	set[first.ID] = true
	for n := first; n.ParentID != nil; {
		set[*n.ParentID] = true
		n, _ = f.Node(*n.ParentID)
	}
	queue := []int64{first.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range f.Children(id) {
			set[child] = true
			queue = append(queue, child)
		}
	}
	return set
}
