package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycleDetected means the parent links do not form a forest.
	ErrCycleDetected = errors.New("cycle detected in team hierarchy")
	// ErrUnknownParent means a team names a parent that does not exist.
	ErrUnknownParent = errors.New("parent team does not exist")
	// ErrDuplicateID means two nodes share an id.
	ErrDuplicateID = errors.New("duplicate team id")
	// ErrNotFound means no team has the requested id.
	ErrNotFound = errors.New("team not found")
	// ErrEmptyName is returned when a team is created without a name.
	ErrEmptyName = errors.New("team name is empty")
)

// CycleError lists the teams that could not be reached from any root.
type CycleError struct {
	IDs []int64
}

func (e *CycleError) Error() string {
	const show = 10
	ids := make([]string, 0, show)
	for i, id := range e.IDs {
		if i == show {
			ids = append(ids, "...")
			break
		}
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("%s: %d team(s) unreachable from any root [%s]",
		ErrCycleDetected, len(e.IDs), strings.Join(ids, " "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// ErrCacheMissing means the materialized cache has not been created.
var ErrCacheMissing = errors.New("materialized cache does not exist")
