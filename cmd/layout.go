package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"teamtree/internal/hierarchy"
	"teamtree/internal/layout"
)

var layoutJSON bool

var layoutCmd = &cobra.Command{
	Use:   "layout [team-name]",
	Short: "Compute diagram positions for the full or scoped hierarchy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		trees, err := queryTrees(cmd, s, args)
		if err != nil {
			return err
		}
		nodes, edges := hierarchy.Diagram(trees, cfg.Layout)
		res := layout.Layout(ctx, nodes, edges, cfg.Layout)
		if res.Fallback {
			mets.ObserveLayoutFallback()
		}

		if layoutJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		if len(res.Nodes) == 0 {
			fmt.Println("No teams.")
			return nil
		}
		fmt.Printf("  %-6s %9s %9s %7s  %s\n", "ID", "X", "Y", "WIDTH", "TEAM")
		for _, n := range res.Nodes {
			fmt.Printf("  %-6s %9.1f %9.1f %7.0f  %s\n", n.ID, n.Position.X, n.Position.Y, n.Width, n.Label)
		}
		if res.Fallback {
			fmt.Fprintln(os.Stderr, "warning: layout failed, positions are unset")
		}
		return nil
	},
}

func init() {
	layoutCmd.Flags().BoolVar(&layoutJSON, "json", false, "Output nodes and edges as JSON")
	layoutCmd.Flags().BoolVar(&hierarchySlow, "slow", false, "Walk live team data instead of the tree view")
	rootCmd.AddCommand(layoutCmd)
}
