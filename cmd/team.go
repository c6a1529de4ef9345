package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"teamtree/internal/db"
)

var (
	teamParent   string
	teamRoot     bool
	teamName     string
	teamPage     int
	teamPageSize int
	teamJSON     bool
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Create, move and list teams",
}

var teamAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a team, optionally under a parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var parentID *int64
		if teamParent != "" {
			parent, err := ResolveTeam(ctx, s.db, teamParent)
			if err != nil {
				return err
			}
			parentID = &parent.ID
		}
		id, err := s.service.AddTeam(ctx, args[0], parentID)
		if err != nil {
			return err
		}
		fmt.Printf("Created team %d.\n", id)
		return nil
	},
}

var teamMoveCmd = &cobra.Command{
	Use:   "move <team>",
	Short: "Move a team under a new parent, or make it a root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (teamParent == "") == !teamRoot {
			return fmt.Errorf("specify exactly one of --parent or --root")
		}
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		team, err := ResolveTeam(ctx, s.db, args[0])
		if err != nil {
			return err
		}
		var parentID *int64
		if teamParent != "" {
			parent, err := ResolveTeam(ctx, s.db, teamParent)
			if err != nil {
				return err
			}
			parentID = &parent.ID
		}
		if err := s.service.MoveTeam(ctx, team.ID, parentID); err != nil {
			return err
		}
		if parentID == nil {
			fmt.Printf("Team %d is now a root.\n", team.ID)
		} else {
			fmt.Printf("Team %d moved under %d.\n", team.ID, *parentID)
		}
		return nil
	},
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams with their parent and children",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		teams, total, err := s.db.TeamsPaginated(ctx, teamName, teamPage, teamPageSize)
		if err != nil {
			return err
		}
		if teamJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Teams []db.TeamWithRelations `json:"teams"`
				Total int                    `json:"total"`
				Page  int                    `json:"page"`
			}{teams, total, teamPage})
		}
		if len(teams) == 0 {
			fmt.Println("No teams.")
			return nil
		}
		for _, t := range teams {
			parent := "-"
			if t.Parent != nil {
				parent = fmt.Sprintf("%s #%d", t.Parent.Name, t.Parent.ID)
			}
			fmt.Printf("  #%-5d %-30s parent: %-30s children: %d\n", t.ID, truncName(t.Name, 30), parent, t.ChildCount)
		}
		fmt.Printf("\n  Page %d, %s of %s teams\n", teamPage, humanize.Comma(int64(len(teams))), humanize.Comma(int64(total)))
		return nil
	},
}

var teamCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.db.TeamCount(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	teamAddCmd.Flags().StringVar(&teamParent, "parent", "", "Parent team (id or name)")
	teamMoveCmd.Flags().StringVar(&teamParent, "parent", "", "New parent team (id or name)")
	teamMoveCmd.Flags().BoolVar(&teamRoot, "root", false, "Make the team a root")
	teamListCmd.Flags().StringVar(&teamName, "name", "", "Filter by name (case-insensitive substring)")
	teamListCmd.Flags().IntVar(&teamPage, "page", 1, "Page number, starting at 1")
	teamListCmd.Flags().IntVar(&teamPageSize, "page-size", 20, "Teams per page")
	teamListCmd.Flags().BoolVar(&teamJSON, "json", false, "Output as JSON")
	teamCmd.AddCommand(teamAddCmd, teamMoveCmd, teamListCmd, teamCountCmd)
	rootCmd.AddCommand(teamCmd)
}
