package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrTreeViewMissing is returned when the derived tree view has not been
// created yet.
var ErrTreeViewMissing = errors.New("team tree view does not exist")

const treeViewTable = "team_tree_view"

const createTreeViewSQL = `
	CREATE TABLE ` + treeViewTable + ` (
		id               INTEGER PRIMARY KEY,
		name             TEXT    NOT NULL,
		parent_id        INTEGER,
		root_id          INTEGER NOT NULL,
		root_name        TEXT    NOT NULL,
		depth            INTEGER NOT NULL,
		path             TEXT    NOT NULL,
		path_names       TEXT    NOT NULL,
		path_length      INTEGER NOT NULL,
		descendant_count INTEGER NOT NULL,
		is_root          INTEGER NOT NULL,
		is_leaf          INTEGER NOT NULL,
		size_category    TEXT    NOT NULL,
		refreshed_at     INTEGER NOT NULL
	);
	CREATE INDEX idx_team_tree_view_name ON ` + treeViewTable + `(name);
	CREATE INDEX idx_team_tree_view_descendants ON ` + treeViewTable + `(descendant_count DESC, name);
`

const treeRowColumns = `id, name, parent_id, root_id, root_name, depth, path, path_names,
	descendant_count, is_root, is_leaf, size_category`

var validate = validator.New(validator.WithRequiredStructEnabled())

// EncodePath renders a path as "/1/2/4/". The delimiters on both ends make
// "/<id>/" a safe containment test.
func EncodePath(path []int64) string {
	var b strings.Builder
	b.WriteByte('/')
	for _, id := range path {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('/')
	}
	return b.String()
}

// DecodePath parses the EncodePath form.
func DecodePath(s string) ([]int64, error) {
	trimmed := strings.Trim(s, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	path := make([]int64, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q in %q: %w", p, s, err)
		}
		path[i] = id
	}
	return path, nil
}

// scanTreeRow scans and validates a row of treeRowColumns.
func scanTreeRow(scanner interface{ Scan(dest ...any) error }) (TreeRow, error) {
	var r TreeRow
	var parentID sql.NullInt64
	var path string
	err := scanner.Scan(
		&r.ID, &r.Name, &parentID, &r.RootID, &r.RootName, &r.Depth, &path, &r.PathNames,
		&r.DescendantCount, &r.IsRoot, &r.IsLeaf, &r.SizeCategory,
	)
	if err != nil {
		return r, err
	}
	if parentID.Valid {
		p := parentID.Int64
		r.ParentID = &p
	}
	if r.Path, err = DecodePath(path); err != nil {
		return r, err
	}
	if err := validate.Struct(r); err != nil {
		return r, fmt.Errorf("invalid tree row %d: %w", r.ID, err)
	}
	return r, nil
}

// TreeViewExists reports whether the tree view table exists
func (d *DB) TreeViewExists(ctx context.Context) (bool, error) {
	return treeViewExists(ctx, d.conn)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func treeViewExists(ctx context.Context, q queryRower) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, treeViewTable).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking tree view: %w", err)
	}
	return n > 0, nil
}

// CreateTreeView creates and populates the tree view if it does not exist.
// An existing view is left untouched and created is false.
func (d *DB) CreateTreeView(ctx context.Context, rows []TreeRow) (created bool, err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := treeViewExists(ctx, tx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, createTreeViewSQL); err != nil {
		return false, fmt.Errorf("creating tree view: %w", err)
	}
	if err := insertTreeRows(ctx, tx, rows); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing tree view: %w", err)
	}
	return true, nil
}

// RefreshTreeView replaces every row of the tree view in one transaction.
// Returns ErrTreeViewMissing if the view was never created.
func (d *DB) RefreshTreeView(ctx context.Context, rows []TreeRow) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := treeViewExists(ctx, tx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTreeViewMissing
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+treeViewTable); err != nil {
		return fmt.Errorf("clearing tree view: %w", err)
	}
	if err := insertTreeRows(ctx, tx, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tree view: %w", err)
	}
	return nil
}

func insertTreeRows(ctx context.Context, tx *sql.Tx, rows []TreeRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+treeViewTable+` (`+treeRowColumns+`, path_length, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tree view insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, r := range rows {
		if err := validate.Struct(r); err != nil {
			return fmt.Errorf("invalid tree row %d: %w", r.ID, err)
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Name, r.ParentID, r.RootID, r.RootName, r.Depth, EncodePath(r.Path), r.PathNames,
			r.DescendantCount, r.IsRoot, r.IsLeaf, r.SizeCategory, len(r.Path), now,
		)
		if err != nil {
			return fmt.Errorf("inserting tree row %d: %w", r.ID, err)
		}
	}
	return nil
}

// DropTreeView drops the tree view if it exists
func (d *DB) DropTreeView(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, `DROP TABLE IF EXISTS `+treeViewTable); err != nil {
		return fmt.Errorf("dropping tree view: %w", err)
	}
	return nil
}

func (d *DB) queryTreeRows(ctx context.Context, query string, args ...any) ([]TreeRow, error) {
	exists, err := d.TreeViewExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTreeViewMissing
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TreeRow
	for rows.Next() {
		r, err := scanTreeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TreeViewRows returns tree view rows ordered by descendant count (desc),
// then name. A limit <= 0 returns every row.
func (d *DB) TreeViewRows(ctx context.Context, limit int) ([]TreeRow, error) {
	query := `SELECT ` + treeRowColumns + ` FROM ` + treeViewTable + `
		ORDER BY descendant_count DESC, name ASC, id ASC`
	if limit > 0 {
		return d.queryTreeRows(ctx, query+` LIMIT ?`, limit)
	}
	return d.queryTreeRows(ctx, query)
}

// TreeViewScope returns the first team named name (lowest id) together with
// all of its ancestors and descendants, ordered by depth then name.
// Ancestors are the ids on the target's path; descendants are the rows whose
// path contains the target's id.
func (d *DB) TreeViewScope(ctx context.Context, name string) ([]TreeRow, error) {
	return d.queryTreeRows(ctx, `
		WITH target AS (
			SELECT id, path FROM `+treeViewTable+`
			WHERE name = ?
			ORDER BY id
			LIMIT 1
		)
		SELECT `+prefixed("tv.", treeRowColumns)+`
		FROM `+treeViewTable+` tv, target t
		WHERE instr(t.path, '/' || tv.id || '/') > 0
		   OR instr(tv.path, '/' || t.id || '/') > 0
		ORDER BY tv.depth, tv.name, tv.id`, name)
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// TreeViewStatistics aggregates the tree view. An empty view yields zeros.
func (d *DB) TreeViewStatistics(ctx context.Context) (*TreeStats, error) {
	exists, err := d.TreeViewExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTreeViewMissing
	}

	var s TreeStats
	err = d.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_root THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_leaf THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(depth), 0),
			COALESCE(ROUND(AVG(depth), 2), 0),
			COALESCE(MAX(descendant_count), 0),
			COALESCE(ROUND(AVG(descendant_count), 2), 0),
			COALESCE(SUM(CASE WHEN descendant_count > 10 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN descendant_count = 0 THEN 1 ELSE 0 END), 0)
		FROM `+treeViewTable).Scan(
		&s.TotalTeams, &s.RootTeams, &s.LeafTeams, &s.MaxDepth, &s.AvgDepth,
		&s.LargestTeamSize, &s.AvgTeamSize, &s.TeamsWith10PlusDescendants, &s.TeamsWithNoDescendants,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating tree view: %w", err)
	}

	rows, err := d.conn.QueryContext(ctx, `SELECT depth, COUNT(*) FROM `+treeViewTable+` GROUP BY depth ORDER BY depth`)
	if err != nil {
		return nil, fmt.Errorf("counting depths: %w", err)
	}
	defer rows.Close()
	s.DepthCounts = make(map[int]int)
	for rows.Next() {
		var depth, n int
		if err := rows.Scan(&depth, &n); err != nil {
			return nil, err
		}
		s.DepthCounts[depth] = n
	}
	return &s, rows.Err()
}
