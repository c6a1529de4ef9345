package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"teamtree/internal/hierarchy"
)

var (
	statsJSON bool
	statsLive bool
	statsTopN int
)

type statsReport struct {
	Source     string                `json:"source"`
	Statistics *hierarchy.Statistics `json:"statistics"`
	Largest    []hierarchy.Record    `json:"largest"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the team hierarchy: sizes, depths, largest teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		report := &statsReport{Source: "view"}
		if statsLive {
			nodes, err := s.store.Nodes(ctx)
			if err != nil {
				return fmt.Errorf("loading teams: %w", err)
			}
			records, err := hierarchy.Materialize(nodes)
			if err != nil {
				return err
			}
			report.Source = "live"
			report.Statistics = hierarchy.ComputeStatistics(records)
			if statsTopN > 0 {
				report.Largest = records[:min(statsTopN, len(records))]
			}
		} else {
			if report.Statistics, err = s.mat.Statistics(ctx); err != nil {
				return err
			}
			if statsTopN > 0 {
				if report.Largest, err = s.mat.Records(ctx, statsTopN); err != nil {
					return err
				}
			}
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printStats(report)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&statsLive, "live", false, "Compute from live team data instead of the tree view")
	statsCmd.Flags().IntVar(&statsTopN, "top-n", 10, "Number of largest teams to show")
	rootCmd.AddCommand(statsCmd)
}

func printStats(report *statsReport) {
	st := report.Statistics
	fmt.Printf("\n  TEAM HIERARCHY (%s)\n", report.Source)
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Teams: %s  Roots: %s  Leaves: %s\n",
		humanize.Comma(int64(st.TotalTeams)), humanize.Comma(int64(st.RootTeams)), humanize.Comma(int64(st.LeafTeams)))
	fmt.Printf("  Depth: max %d, avg %.2f\n", st.MaxDepth, st.AvgDepth)
	fmt.Printf("  Size:  largest %s descendants, avg %.2f\n", humanize.Comma(int64(st.LargestTeamSize)), st.AvgTeamSize)
	fmt.Printf("  Teams with >10 descendants: %s  with none: %s\n",
		humanize.Comma(int64(st.TeamsWith10PlusDescendants)), humanize.Comma(int64(st.TeamsWithNoDescendants)))

	if st.TotalTeams > 0 {
		fmt.Println("\n  Depth distribution:")
		for _, b := range st.DepthHistogram {
			if b.Count > 0 {
				barWidth := int(math.Log2(float64(b.Count))) + 2
				fmt.Printf("    %5s: %6s  %s\n", b.Label, humanize.Comma(int64(b.Count)), strings.Repeat("=", barWidth))
			}
		}
	}

	if len(report.Largest) > 0 {
		fmt.Println("\n  Largest teams:")
		for _, r := range report.Largest {
			fmt.Printf("    #%-5d %-6s %6s  %s\n", r.ID, r.SizeCategory,
				humanize.Comma(int64(r.DescendantCount)), truncName(r.PathNames, 60))
		}
	}
	fmt.Println()
}

// truncName keeps the tail of long paths, where the team itself is.
func truncName(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return "…" + string(runes[len(runes)-max+1:])
}
