package hierarchy

import "math"

// DepthBucket is one bucket in the depth histogram
type DepthBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Statistics summarizes a materialized forest
type Statistics struct {
	TotalTeams                 int           `json:"totalTeams"`
	RootTeams                  int           `json:"rootTeams"`
	LeafTeams                  int           `json:"leafTeams"`
	MaxDepth                   int           `json:"maxDepth"`
	AvgDepth                   float64       `json:"avgDepth"`
	LargestTeamSize            int           `json:"largestTeamSize"`
	AvgTeamSize                float64       `json:"avgTeamSize"`
	TeamsWith10PlusDescendants int           `json:"teamsWith10PlusDescendants"`
	TeamsWithNoDescendants     int           `json:"teamsWithNoDescendants"`
	DepthHistogram             []DepthBucket `json:"depthHistogram"`
}

// ComputeStatistics aggregates records. Averages are rounded to two decimals.
func ComputeStatistics(records []Record) *Statistics {
	s := &Statistics{DepthHistogram: defaultHistogram()}
	if len(records) == 0 {
		return s
	}

	var depthSum, sizeSum int
	for _, r := range records {
		s.TotalTeams++
		if r.IsRoot {
			s.RootTeams++
		}
		if r.IsLeaf {
			s.LeafTeams++
		}
		if r.Depth > s.MaxDepth {
			s.MaxDepth = r.Depth
		}
		if r.DescendantCount > s.LargestTeamSize {
			s.LargestTeamSize = r.DescendantCount
		}
		if r.DescendantCount > 10 {
			s.TeamsWith10PlusDescendants++
		}
		if r.DescendantCount == 0 {
			s.TeamsWithNoDescendants++
		}
		depthSum += r.Depth
		sizeSum += r.DescendantCount
		s.DepthHistogram[depthBucket(r.Depth)].Count++
	}
	s.AvgDepth = round2(float64(depthSum) / float64(s.TotalTeams))
	s.AvgTeamSize = round2(float64(sizeSum) / float64(s.TotalTeams))
	return s
}

// AddDepthCounts folds per-depth team counts into the histogram.
func (s *Statistics) AddDepthCounts(counts map[int]int) {
	if s.DepthHistogram == nil {
		s.DepthHistogram = defaultHistogram()
	}
	for depth, n := range counts {
		s.DepthHistogram[depthBucket(depth)].Count += n
	}
}

func defaultHistogram() []DepthBucket {
	return []DepthBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2"},
		{Label: "3"}, {Label: "4-5"}, {Label: "6-9"}, {Label: "10+"},
	}
}

func depthBucket(depth int) int {
	switch {
	case depth <= 0:
		return 0
	case depth <= 3:
		return depth
	case depth <= 5:
		return 4
	case depth <= 9:
		return 5
	default:
		return 6
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
