package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	viewLimit int
	viewJSON  bool
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Manage the materialized team tree view",
}

var viewCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the tree view if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		created, err := s.mat.Create(ctx)
		if err != nil {
			return err
		}
		if created {
			fmt.Println("Tree view created.")
		} else {
			fmt.Println("Tree view already exists; left unchanged.")
		}
		return nil
	},
}

var viewRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the tree view from live team data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		start := time.Now()
		if err := s.mat.Refresh(ctx); err != nil {
			return err
		}
		n, err := s.db.TeamCount(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %s teams in %s.\n", humanize.Comma(int64(n)), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var viewDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the tree view",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.mat.Drop(ctx); err != nil {
			return err
		}
		fmt.Println("Tree view dropped.")
		return nil
	},
}

var viewStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the tree view exists and how many teams it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		exists, err := s.mat.Exists(ctx)
		if err != nil {
			return err
		}
		teams, err := s.db.TeamCount(ctx)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Printf("Tree view: missing (%s live teams)\n", humanize.Comma(int64(teams)))
			return nil
		}
		records, err := s.mat.Records(ctx, 0)
		if err != nil {
			return err
		}
		state := "current"
		if len(records) != teams {
			state = "stale"
		}
		fmt.Printf("Tree view: %s (%s cached, %s live teams)\n",
			state, humanize.Comma(int64(len(records))), humanize.Comma(int64(teams)))
		return nil
	},
}

var viewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tree view records, largest teams first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		records, err := s.mat.Records(ctx, viewLimit)
		if err != nil {
			return err
		}
		if viewJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			fmt.Println("No teams.")
			return nil
		}
		fmt.Printf("  %-6s %-8s %5s %11s  %s\n", "ID", "SIZE", "DEPTH", "DESCENDANTS", "PATH")
		for _, r := range records {
			fmt.Printf("  %-6d %-8s %5d %11s  %s\n",
				r.ID, r.SizeCategory, r.Depth, humanize.Comma(int64(r.DescendantCount)), r.PathNames)
		}
		return nil
	},
}

func init() {
	viewListCmd.Flags().IntVar(&viewLimit, "limit", 50, "Maximum records to show (0 = all)")
	viewListCmd.Flags().BoolVar(&viewJSON, "json", false, "Output as JSON")
	viewCmd.AddCommand(viewCreateCmd, viewRefreshCmd, viewDropCmd, viewStatusCmd, viewListCmd)
	rootCmd.AddCommand(viewCmd)
}
