package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"teamtree/internal/db"
)

// Store adapts *db.DB to Source, Writer and Cache.
type Store struct {
	db *db.DB
}

// NewStore wraps d.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

func (s *Store) Nodes(ctx context.Context) ([]Node, error) {
	teams, err := s.db.AllTeams(ctx)
	if err != nil {
		return nil, err
	}
	return teamNodes(teams), nil
}

func (s *Store) NodeByName(ctx context.Context, name string) (*Node, error) {
	t, err := s.db.TeamByName(ctx, name)
	return teamNode(t, err)
}

func (s *Store) NodeByID(ctx context.Context, id int64) (*Node, error) {
	t, err := s.db.TeamByID(ctx, id)
	return teamNode(t, err)
}

func (s *Store) Children(ctx context.Context, id int64) ([]Node, error) {
	teams, err := s.db.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	return teamNodes(teams), nil
}

func (s *Store) CreateNode(ctx context.Context, name string, parentID *int64) (int64, error) {
	return s.db.CreateTeam(ctx, name, parentID)
}

func (s *Store) SetParent(ctx context.Context, id int64, parentID *int64) error {
	return s.db.SetParent(ctx, id, parentID)
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.db.TreeViewExists(ctx)
}

func (s *Store) Create(ctx context.Context, records []Record) (bool, error) {
	return s.db.CreateTreeView(ctx, treeRows(records))
}

func (s *Store) Replace(ctx context.Context, records []Record) error {
	return cacheErr(s.db.RefreshTreeView(ctx, treeRows(records)))
}

func (s *Store) Drop(ctx context.Context) error {
	return s.db.DropTreeView(ctx)
}

func (s *Store) Records(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.TreeViewRows(ctx, limit)
	if err != nil {
		return nil, cacheErr(err)
	}
	return rowRecords(rows), nil
}

func (s *Store) Scope(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.db.TreeViewScope(ctx, name)
	if err != nil {
		return nil, cacheErr(err)
	}
	return rowRecords(rows), nil
}

func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	ts, err := s.db.TreeViewStatistics(ctx)
	if err != nil {
		return nil, cacheErr(err)
	}
	stats := &Statistics{
		TotalTeams:                 ts.TotalTeams,
		RootTeams:                  ts.RootTeams,
		LeafTeams:                  ts.LeafTeams,
		MaxDepth:                   ts.MaxDepth,
		AvgDepth:                   ts.AvgDepth,
		LargestTeamSize:            ts.LargestTeamSize,
		AvgTeamSize:                ts.AvgTeamSize,
		TeamsWith10PlusDescendants: ts.TeamsWith10PlusDescendants,
		TeamsWithNoDescendants:     ts.TeamsWithNoDescendants,
	}
	stats.AddDepthCounts(ts.DepthCounts)
	return stats, nil
}

func cacheErr(err error) error {
	if errors.Is(err, db.ErrTreeViewMissing) {
		return fmt.Errorf("%w: %w", ErrCacheMissing, err)
	}
	return err
}

func teamNode(t *db.Team, err error) (*Node, error) {
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Node{ID: t.ID, Name: t.Name, ParentID: t.ParentID}, nil
}

func teamNodes(teams []db.Team) []Node {
	nodes := make([]Node, 0, len(teams))
	for _, t := range teams {
		nodes = append(nodes, Node{ID: t.ID, Name: t.Name, ParentID: t.ParentID})
	}
	return nodes
}

func treeRows(records []Record) []db.TreeRow {
	rows := make([]db.TreeRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, db.TreeRow{
			ID:              r.ID,
			Name:            r.Name,
			ParentID:        r.ParentID,
			RootID:          r.RootID,
			RootName:        r.RootName,
			Depth:           r.Depth,
			Path:            r.Path,
			PathNames:       r.PathNames,
			DescendantCount: r.DescendantCount,
			IsRoot:          r.IsRoot,
			IsLeaf:          r.IsLeaf,
			SizeCategory:    r.SizeCategory,
		})
	}
	return rows
}

func rowRecords(rows []db.TreeRow) []Record {
	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, Record{
			ID:              r.ID,
			Name:            r.Name,
			ParentID:        r.ParentID,
			RootID:          r.RootID,
			RootName:        r.RootName,
			Depth:           r.Depth,
			Path:            r.Path,
			PathNames:       r.PathNames,
			DescendantCount: r.DescendantCount,
			IsRoot:          r.IsRoot,
			IsLeaf:          r.IsLeaf,
			SizeCategory:    r.SizeCategory,
		})
	}
	return records
}

var (
	_ Source = (*Store)(nil)
	_ Writer = (*Store)(nil)
	_ Cache  = (*Store)(nil)
)
