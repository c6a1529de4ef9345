package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const teamColumns = `id, name, parent_id, created_at`

// scanTeam scans a row into a Team. The row must have the teamColumns in order.
func scanTeam(scanner interface{ Scan(dest ...any) error }) (Team, error) {
	var t Team
	var parentID sql.NullInt64
	if err := scanner.Scan(&t.ID, &t.Name, &parentID, &t.CreatedAt); err != nil {
		return t, err
	}
	if parentID.Valid {
		p := parentID.Int64
		t.ParentID = &p
	}
	return t, nil
}

func (d *DB) queryTeams(ctx context.Context, query string, args ...any) ([]Team, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// AllTeams returns all teams ordered by id
func (d *DB) AllTeams(ctx context.Context) ([]Team, error) {
	return d.queryTeams(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
}

// TeamByID returns a single team, or ErrNotFound
func (d *DB) TeamByID(ctx context.Context, id int64) (*Team, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	t, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TeamByName returns the lowest-id team with exactly this name, or ErrNotFound.
// Names are not unique.
func (d *DB) TeamByName(ctx context.Context, name string) (*Team, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE name = ? ORDER BY id LIMIT 1`, name)
	t, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Children returns the direct children of a team ordered by id
func (d *DB) Children(ctx context.Context, parentID int64) ([]Team, error) {
	return d.queryTeams(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE parent_id = ? ORDER BY id`, parentID)
}

// TeamCount returns the number of teams
func (d *DB) TeamCount(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&n)
	return n, err
}

// CreateTeam inserts a team and returns its id. The parent must exist.
func (d *DB) CreateTeam(ctx context.Context, name string, parentID *int64) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`INSERT INTO teams (name, parent_id, created_at) VALUES (?, ?, ?)`,
		name, parentID, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("creating team %q: %w", name, err)
	}
	return res.LastInsertId()
}

// SetParent updates a team's parent. A nil parentID makes it a root.
// Acyclicity is not checked here.
func (d *DB) SetParent(ctx context.Context, id int64, parentID *int64) error {
	res, err := d.conn.ExecContext(ctx, `UPDATE teams SET parent_id = ? WHERE id = ?`, parentID, id)
	if err != nil {
		return fmt.Errorf("updating parent of team %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertTeams inserts a batch in one transaction and returns the new ids in
// batch order.
func (d *DB) InsertTeams(ctx context.Context, batch []NewTeam) ([]int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO teams (name, parent_id, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	ids := make([]int64, len(batch))
	for i, nt := range batch {
		var parentID *int64
		if nt.ParentIndex >= 0 {
			if nt.ParentIndex >= i {
				return nil, fmt.Errorf("team %d (%q): parent index %d is not an earlier entry", i, nt.Name, nt.ParentIndex)
			}
			parentID = &ids[nt.ParentIndex]
		}
		res, err := stmt.ExecContext(ctx, nt.Name, parentID, now)
		if err != nil {
			return nil, fmt.Errorf("inserting team %q: %w", nt.Name, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing teams: %w", err)
	}
	return ids, nil
}

// TeamsWithRelations returns teams with parent and children resolved,
// optionally restricted to an exact name.
func (d *DB) TeamsWithRelations(ctx context.Context, name string) ([]TeamWithRelations, error) {
	var teams []Team
	var err error
	if name != "" {
		teams, err = d.queryTeams(ctx, `SELECT `+teamColumns+` FROM teams WHERE name = ? ORDER BY id`, name)
	} else {
		teams, err = d.AllTeams(ctx)
	}
	if err != nil {
		return nil, err
	}
	return d.withRelations(ctx, teams)
}

// TeamsPaginated returns one page of teams whose name contains the filter
// (case-insensitive), ordered by name, plus the total number of matches.
// Pages start at 1.
func (d *DB) TeamsPaginated(ctx context.Context, name string, page, pageSize int) ([]TeamWithRelations, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	where := ""
	var args []any
	if name != "" {
		where = ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(name)+"%")
	}

	var total int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting teams: %w", err)
	}

	pageArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)
	teams, err := d.queryTeams(ctx,
		`SELECT `+teamColumns+` FROM teams`+where+` ORDER BY name, id LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing teams: %w", err)
	}
	withRel, err := d.withRelations(ctx, teams)
	if err != nil {
		return nil, 0, err
	}
	return withRel, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// withRelations resolves parents and children for a set of teams with two
// IN queries instead of one query per team.
func (d *DB) withRelations(ctx context.Context, teams []Team) ([]TeamWithRelations, error) {
	result := make([]TeamWithRelations, len(teams))
	if len(teams) == 0 {
		return result, nil
	}

	ids := make([]any, len(teams))
	var parentIDs []any
	for i, t := range teams {
		ids[i] = t.ID
		if t.ParentID != nil {
			parentIDs = append(parentIDs, *t.ParentID)
		}
	}

	parents := make(map[int64]TeamRef)
	if len(parentIDs) > 0 {
		refs, err := d.teamRefs(ctx, `SELECT id, name, parent_id FROM teams WHERE id IN (`+placeholders(len(parentIDs))+`)`, parentIDs...)
		if err != nil {
			return nil, fmt.Errorf("loading parents: %w", err)
		}
		for _, r := range refs {
			parents[r.ref.ID] = r.ref
		}
	}

	children := make(map[int64][]TeamRef)
	refs, err := d.teamRefs(ctx, `SELECT id, name, parent_id FROM teams WHERE parent_id IN (`+placeholders(len(ids))+`) ORDER BY id`, ids...)
	if err != nil {
		return nil, fmt.Errorf("loading children: %w", err)
	}
	for _, r := range refs {
		children[r.parentID] = append(children[r.parentID], r.ref)
	}

	for i, t := range teams {
		tw := TeamWithRelations{Team: t, Children: children[t.ID]}
		if tw.Children == nil {
			tw.Children = []TeamRef{}
		}
		if t.ParentID != nil {
			if p, ok := parents[*t.ParentID]; ok {
				tw.Parent = &p
				tw.ParentCount = 1
			}
		}
		tw.ChildCount = len(tw.Children)
		result[i] = tw
	}
	return result, nil
}

type refRow struct {
	ref      TeamRef
	parentID int64
}

func (d *DB) teamRefs(ctx context.Context, query string, args ...any) ([]refRow, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refRow
	for rows.Next() {
		var r refRow
		var parentID sql.NullInt64
		if err := rows.Scan(&r.ref.ID, &r.ref.Name, &parentID); err != nil {
			return nil, err
		}
		r.parentID = parentID.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
