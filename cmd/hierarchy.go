package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ddddddO/gtree"
	"github.com/spf13/cobra"

	"teamtree/internal/hierarchy"
)

var (
	hierarchyJSON bool
	hierarchySlow bool
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy [team-name]",
	Short: "Show the full team hierarchy, or the branch around one team",
	Long: `Without a name, prints every root team with everything below it.
With a name, prints the first team of that name together with all of its
ancestors and descendants. A name that matches nothing prints nothing.`,
	Args: cobra.MaximumNArgs(1),
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

		if hierarchyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(trees)
		}
		if len(trees) == 0 {
			if len(args) == 1 {
				fmt.Fprintf(os.Stderr, "No team named %q.\n", args[0])
			} else {
				fmt.Fprintln(os.Stderr, "No teams.")
			}
			return nil
		}
		return printTrees(os.Stdout, trees)
	},
}

func init() {
	hierarchyCmd.Flags().BoolVar(&hierarchyJSON, "json", false, "Output as JSON")
	hierarchyCmd.Flags().BoolVar(&hierarchySlow, "slow", false, "Walk live team data instead of the tree view")
	rootCmd.AddCommand(hierarchyCmd)
}

// queryTrees runs the full or scoped query on the path selected by --slow.
func queryTrees(cmd *cobra.Command, s *stack, args []string) ([]*hierarchy.Tree, error) {
	ctx := cmd.Context()
	switch {
	case len(args) == 0 && hierarchySlow:
		return s.engine.FullHierarchySlow(ctx)
	case len(args) == 0:
		return s.engine.FullHierarchy(ctx)
	case hierarchySlow:
		return s.engine.ScopedHierarchySlow(ctx, args[0])
	default:
		return s.engine.ScopedHierarchy(ctx, args[0])
	}
}

// printTrees renders each root as its own tree.
func printTrees(w io.Writer, trees []*hierarchy.Tree) error {
	for _, t := range trees {
		root := gtree.NewRoot(treeLabel(t))
		addChildren(root, t.Children)
		if err := gtree.OutputFromRoot(w, root); err != nil {
			return fmt.Errorf("rendering tree: %w", err)
		}
	}
	return nil
}

func addChildren(parent *gtree.Node, children []*hierarchy.Tree) {
	for _, c := range children {
		addChildren(parent.Add(treeLabel(c)), c.Children)
	}
}

// treeLabel includes the id; gtree merges siblings with identical text.
func treeLabel(t *hierarchy.Tree) string {
	if t.ChildCount == 0 {
		return fmt.Sprintf("%s #%d", t.Name, t.ID)
	}
	return fmt.Sprintf("%s #%d (%d)", t.Name, t.ID, t.ChildCount)
}
