package hierarchy

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"teamtree/internal/logging"
)

func newTestService(t *testing.T, nodes []Node) (*Service, *Engine, *memStore) {
	t.Helper()
	engine, mat, store := newTestEngine(t, nodes)
	return NewService(store, store, mat), engine, store
}

func TestAddTeam(t *testing.T) {
	ctx := context.Background()
	svc, engine, _ := newTestService(t, scenarioNodes())

	id, err := svc.AddTeam(ctx, "  Networking ", ptr(2))
	if err != nil {
		t.Fatalf("AddTeam: %v", err)
	}
	trees, err := engine.ScopedHierarchy(ctx, "Networking")
	if err != nil {
		t.Fatal(err)
	}
	if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 2, id}) {
		t.Errorf("scoped ids = %v, want [1 2 %d]", got, id)
	}

	if _, err := svc.AddTeam(ctx, "Orphan", ptr(99)); !errors.Is(err, ErrUnknownParent) {
		t.Errorf("unknown parent: err = %v", err)
	}
	if _, err := svc.AddTeam(ctx, " ", nil); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name: err = %v", err)
	}
}

func TestMoveTeam(t *testing.T) {
	ctx := context.Background()
	svc, engine, _ := newTestService(t, scenarioNodes())

	if err := svc.MoveTeam(ctx, 4, ptr(3)); err != nil {
		t.Fatalf("MoveTeam: %v", err)
	}
	trees, _ := engine.ScopedHierarchy(ctx, "Storage")
	if got := flatIDs(trees); !reflect.DeepEqual(got, []int64{1, 3, 4}) {
		t.Errorf("after move ids = %v, want [1 3 4]", got)
	}

	if err := svc.MoveTeam(ctx, 2, nil); err != nil {
		t.Fatalf("MoveTeam to root: %v", err)
	}
	trees, _ = engine.FullHierarchy(ctx)
	if len(trees) != 2 {
		t.Errorf("roots = %d, want 2", len(trees))
	}
}

func TestMoveTeam_RejectsCycles(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t, scenarioNodes())

	for _, move := range [][2]int64{{1, 4}, {2, 4}, {3, 3}} {
		err := svc.MoveTeam(ctx, move[0], ptr(move[1]))
		if !errors.Is(err, ErrCycleDetected) {
			t.Errorf("MoveTeam(%d under %d): err = %v, want cycle", move[0], move[1], err)
		}
	}
	if n, _ := store.NodeByID(ctx, 1); n.ParentID != nil {
		t.Error("rejected move was applied")
	}
	if err := svc.MoveTeam(ctx, 42, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing team: err = %v", err)
	}
	if err := svc.MoveTeam(ctx, 4, ptr(42)); !errors.Is(err, ErrUnknownParent) {
		t.Errorf("missing parent: err = %v", err)
	}
}

func TestServiceLogsParentIDs(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), logging.New("info", "text", &buf))
	svc, _, _ := newTestService(t, scenarioNodes())

	id, err := svc.AddTeam(ctx, "Networking", ptr(2))
	if err != nil {
		t.Fatalf("AddTeam: %v", err)
	}
	if err := svc.MoveTeam(ctx, id, nil); err != nil {
		t.Fatalf("MoveTeam: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"msg=\"team created\"", "parent=2", "msg=\"team moved\"", "parent=root"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "parent=0x") {
		t.Errorf("log output contains a pointer:\n%s", out)
	}
}
