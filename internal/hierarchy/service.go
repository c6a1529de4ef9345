package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"teamtree/internal/logging"
)

// Service is the write path for the team forest. It keeps parent links
// acyclic and refreshes the cache after every change when a materializer
// is attached.
type Service struct {
	source Source
	writer Writer
	mat    *Materializer
}

// NewService builds a service. mat may be nil to skip refreshing.
func NewService(source Source, writer Writer, mat *Materializer) *Service {
	return &Service{source: source, writer: writer, mat: mat}
}

// AddTeam creates a team under parentID, or as a root when parentID is nil.
func (s *Service) AddTeam(ctx context.Context, name string, parentID *int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyName
	}
	if parentID != nil {
		parent, err := s.source.NodeByID(ctx, *parentID)
		if err != nil {
			return 0, fmt.Errorf("loading parent %d: %w", *parentID, err)
		}
		if parent == nil {
			return 0, fmt.Errorf("team %d: %w", *parentID, ErrUnknownParent)
		}
	}

	id, err := s.writer.CreateNode(ctx, name, parentID)
	if err != nil {
		return 0, fmt.Errorf("creating team %q: %w", name, err)
	}
	logging.FromContext(ctx).Info("team created", "id", id, "name", name, parentAttr(parentID))
	return id, s.refresh(ctx)
}

// MoveTeam re-parents id under parentID, or makes it a root when parentID
// is nil. A move that would put a team below itself fails with
// ErrCycleDetected and changes nothing.
func (s *Service) MoveTeam(ctx context.Context, id int64, parentID *int64) error {
	nodes, err := s.source.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("loading teams: %w", err)
	}
	forest, err := NewForest(nodes)
	if err != nil {
		return err
	}
	if _, ok := forest.Node(id); !ok {
		return fmt.Errorf("team %d: %w", id, ErrNotFound)
	}
	if parentID != nil {
		if _, ok := forest.Node(*parentID); !ok {
			return fmt.Errorf("team %d: %w", *parentID, ErrUnknownParent)
		}
		if forest.WouldCycle(id, *parentID) {
			return &CycleError{IDs: []int64{id, *parentID}}
		}
	}

	if err := s.writer.SetParent(ctx, id, parentID); err != nil {
		return fmt.Errorf("moving team %d: %w", id, err)
	}
	logging.FromContext(ctx).Info("team moved", "id", id, parentAttr(parentID))
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	if s.mat == nil {
		return nil
	}
	if err := s.mat.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing tree view: %w", err)
	}
	return nil
}

// parentAttr logs a parent id, or "root" for none.
func parentAttr(parentID *int64) slog.Attr {
	if parentID == nil {
		return slog.String("parent", "root")
	}
	return slog.Int64("parent", *parentID)
}
