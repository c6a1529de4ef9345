package hierarchy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
)

func ptr(id int64) *int64 { return &id }

func node(id int64, name string, parent int64) Node {
	n := Node{ID: id, Name: name}
	if parent != 0 {
		n.ParentID = ptr(parent)
	}
	return n
}

// scenarioNodes is 1 -> {2, 3}, 2 -> {4}.
func scenarioNodes() []Node {
	return []Node{
		node(1, "Engineering", 0),
		node(2, "Platform", 1),
		node(3, "Product", 1),
		node(4, "Storage", 2),
	}
}

// randomForest builds n nodes where each node's parent, if any, is an
// earlier node. Names repeat so that name ordering and lookups see ties.
func randomForest(n int, seed uint64) []Node {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	nodes := make([]Node, 0, n)
	for i := 1; i <= n; i++ {
		nd := Node{ID: int64(i), Name: fmt.Sprintf("team-%d", r.IntN(n/2+1))}
		if i > 1 && r.IntN(2) == 0 {
			nd.ParentID = ptr(int64(r.IntN(i-1) + 1))
		}
		nodes = append(nodes, nd)
	}
	return nodes
}

func recordsByID(records []Record) map[int64]Record {
	m := make(map[int64]Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

func flatIDs(trees []*Tree) []int64 {
	var ids []int64
	for _, t := range Flatten(trees) {
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// memStore is an in-memory Source, Writer and Cache.
type memStore struct {
	mu       sync.Mutex
	nodes    map[int64]Node
	nextID   int64
	cache    []Record
	cached   bool
	replaces int
	creates  int
}

func newMemStore(nodes []Node) *memStore {
	s := &memStore{nodes: make(map[int64]Node)}
	for _, n := range nodes {
		s.nodes[n.ID] = n
		if n.ID > s.nextID {
			s.nextID = n.ID
		}
	}
	return s
}

func (s *memStore) Nodes(ctx context.Context) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) NodeByName(ctx context.Context, name string) (*Node, error) {
	nodes, _ := s.Nodes(ctx)
	for _, n := range nodes {
		if n.Name == name {
			return &n, nil
		}
	}
	return nil, nil
}

func (s *memStore) NodeByID(ctx context.Context, id int64) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *memStore) Children(ctx context.Context, id int64) ([]Node, error) {
	nodes, _ := s.Nodes(ctx)
	var out []Node
	for _, n := range nodes {
		if n.ParentID != nil && *n.ParentID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) CreateNode(ctx context.Context, name string, parentID *int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.nodes[s.nextID] = Node{ID: s.nextID, Name: name, ParentID: parentID}
	return s.nextID, nil
}

func (s *memStore) SetParent(ctx context.Context, id int64, parentID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("team %d: %w", id, ErrNotFound)
	}
	n.ParentID = parentID
	s.nodes[id] = n
	return nil
}

func (s *memStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached, nil
}

func (s *memStore) Create(ctx context.Context, records []Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached {
		return false, nil
	}
	s.cache, s.cached = records, true
	s.creates++
	return true, nil
}

func (s *memStore) Replace(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cached {
		return ErrCacheMissing
	}
	s.cache = records
	s.replaces++
	return nil
}

func (s *memStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache, s.cached = nil, false
	return nil
}

func (s *memStore) Records(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cached {
		return nil, ErrCacheMissing
	}
	out := append([]Record(nil), s.cache...)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Scope(ctx context.Context, name string) ([]Record, error) {
	all, err := s.Records(ctx, 0)
	if err != nil {
		return nil, err
	}
	var target *Record
	for i := range all {
		if all[i].Name == name && (target == nil || all[i].ID < target.ID) {
			target = &all[i]
		}
	}
	if target == nil {
		return nil, nil
	}
	onPath := func(path []int64, id int64) bool {
		for _, p := range path {
			if p == id {
				return true
			}
		}
		return false
	}
	var out []Record
	for _, r := range all {
		if onPath(target.Path, r.ID) || onPath(r.Path, target.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Statistics(ctx context.Context) (*Statistics, error) {
	all, err := s.Records(ctx, 0)
	if err != nil {
		return nil, err
	}
	return ComputeStatistics(all), nil
}

// newTestEngine wires an engine, materializer and service over one memStore.
func newTestEngine(t *testing.T, nodes []Node) (*Engine, *Materializer, *memStore) {
	t.Helper()
	store := newMemStore(nodes)
	mat := NewMaterializer(store, store, nil)
	return NewEngine(store, mat, nil), mat, store
}
