// Package hierarchy materializes the team forest into per-team records and
// reassembles nested trees from either those records or the live teams.
package hierarchy

// Node is a team decoupled from storage types
type Node struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Size categories derived from the descendant count
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// SizeCategory buckets a descendant count: >50 large, >10 medium, else small.
func SizeCategory(descendants int) string {
	switch {
	case descendants > 50:
		return SizeLarge
	case descendants > 10:
		return SizeMedium
	default:
		return SizeSmall
	}
}

// Record is the materialized, read-only view of one team
type Record struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	ParentID        *int64  `json:"parentId"`
	RootID          int64   `json:"rootId"`
	RootName        string  `json:"rootName"`
	Depth           int     `json:"depth"`
	Path            []int64 `json:"path"`      // root first, self last
	PathNames       string  `json:"pathNames"` // names along Path joined by PathSeparator
	DescendantCount int     `json:"descendantCount"`
	IsRoot          bool    `json:"isRoot"`
	IsLeaf          bool    `json:"isLeaf"`
	SizeCategory    string  `json:"sizeCategory"`
}

// PathSeparator joins names in Record.PathNames
const PathSeparator = " → "

func (r *Record) node() Node {
	return Node{ID: r.ID, Name: r.Name, ParentID: r.ParentID}
}

// TeamRef is a shallow reference to a parent team
type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tree is one team with its nested children, built fresh per query
type Tree struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Parent      *TeamRef `json:"parent"`
	Children    []*Tree  `json:"children"`
	ParentCount int      `json:"parentCount"`
	ChildCount  int      `json:"childCount"`
}
