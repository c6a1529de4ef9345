package db

// Team represents a row in the teams table
type Team struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ParentID  *int64 `json:"parentId"`
	CreatedAt int64  `json:"createdAt"` // Unix millis
}

// TeamRef is a shallow id+name reference to another team
type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TeamWithRelations is a team with its parent and direct children resolved
type TeamWithRelations struct {
	Team
	Parent      *TeamRef  `json:"parent"`
	Children    []TeamRef `json:"children"`
	ParentCount int       `json:"parentCount"`
	ChildCount  int       `json:"childCount"`
}

// NewTeam describes a team to insert in a batch. ParentIndex points at an
// earlier entry of the same batch; -1 means no parent.
type NewTeam struct {
	Name        string
	ParentIndex int
}

// TreeRow represents a row in the team_tree_view table
type TreeRow struct {
	ID              int64   `json:"id" validate:"gt=0"`
	Name            string  `json:"name"`
	ParentID        *int64  `json:"parentId" validate:"omitempty,gt=0"`
	RootID          int64   `json:"rootId" validate:"gt=0"`
	RootName        string  `json:"rootName"`
	Depth           int     `json:"depth" validate:"gte=0"`
	Path            []int64 `json:"path" validate:"min=1,dive,gt=0"`
	PathNames       string  `json:"pathNames"`
	DescendantCount int     `json:"descendantCount" validate:"gte=0"`
	IsRoot          bool    `json:"isRoot"`
	IsLeaf          bool    `json:"isLeaf"`
	SizeCategory    string  `json:"sizeCategory" validate:"oneof=small medium large"`
}

// TreeStats is the aggregate row of the team_tree_view statistics query
type TreeStats struct {
	TotalTeams                 int         `json:"totalTeams"`
	RootTeams                  int         `json:"rootTeams"`
	LeafTeams                  int         `json:"leafTeams"`
	MaxDepth                   int         `json:"maxDepth"`
	AvgDepth                   float64     `json:"avgDepth"`
	LargestTeamSize            int         `json:"largestTeamSize"`
	AvgTeamSize                float64     `json:"avgTeamSize"`
	TeamsWith10PlusDescendants int         `json:"teamsWith10PlusDescendants"`
	TeamsWithNoDescendants     int         `json:"teamsWithNoDescendants"`
	DepthCounts                map[int]int `json:"depthCounts"`
}
