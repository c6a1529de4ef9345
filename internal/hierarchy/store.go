package hierarchy

import "context"

// Source is read access to the live team forest.
type Source interface {
	// Nodes returns every team.
	Nodes(ctx context.Context) ([]Node, error)
	// NodeByName returns the lowest-id team with this name, or nil.
	NodeByName(ctx context.Context, name string) (*Node, error)
	// NodeByID returns the team with this id, or nil.
	NodeByID(ctx context.Context, id int64) (*Node, error)
	// Children returns the direct children of a team.
	Children(ctx context.Context, id int64) ([]Node, error)
}

// Writer mutates the live team forest.
type Writer interface {
	CreateNode(ctx context.Context, name string, parentID *int64) (int64, error)
	SetParent(ctx context.Context, id int64, parentID *int64) error
}

// Cache is the persisted set of materialized records. Read methods return
// an error wrapping ErrCacheMissing when the cache has not been created.
type Cache interface {
	Exists(ctx context.Context) (bool, error)
	// Create stores records only if the cache does not exist yet.
	Create(ctx context.Context, records []Record) (created bool, err error)
	// Replace swaps every stored record for records atomically.
	Replace(ctx context.Context, records []Record) error
	Drop(ctx context.Context) error
	// Records returns records by descendant count (desc), then name;
	// limit <= 0 means all.
	Records(ctx context.Context, limit int) ([]Record, error)
	// Scope returns the first record named name plus its ancestors and
	// descendants.
	Scope(ctx context.Context, name string) ([]Record, error)
	Statistics(ctx context.Context) (*Statistics, error)
}
