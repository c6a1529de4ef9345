package cmd

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"teamtree/internal/db"
	"teamtree/internal/logging"
)

var (
	seedCount  int
	seedSeed   uint64
	seedNoView bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a random team forest for testing",
	Long: `Inserts --count teams with unique generated names. Each team after the
first has an even chance of getting a parent, always picked from teams
created before it, so the result is acyclic by construction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		ctx := cmd.Context()
		s, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		seed := seedSeed
		if !cmd.Flags().Changed("seed") {
			seed = uint64(time.Now().UnixNano())
		}
		batch := randomTeams(seedCount, seed)

		start := time.Now()
		if _, err := s.db.InsertTeams(ctx, batch); err != nil {
			return err
		}
		logging.FromContext(ctx).Info("seeded teams", "count", len(batch), "seed", seed, "duration", time.Since(start))

		if !seedNoView {
			if err := s.mat.Refresh(ctx); err != nil {
				return err
			}
		}
		fmt.Printf("Inserted %s teams (seed %d).\n", humanize.Comma(int64(len(batch))), seed)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 10000, "Number of teams to insert")
	seedCmd.Flags().Uint64Var(&seedSeed, "seed", 0, "Random seed (default: time based)")
	seedCmd.Flags().BoolVar(&seedNoView, "no-refresh", false, "Skip refreshing the tree view afterwards")
	rootCmd.AddCommand(seedCmd)
}

var (
	nameAdjectives = []string{
		"Agile", "Blue", "Bright", "Central", "Clear", "Coastal", "Core", "Crimson",
		"Digital", "Eastern", "Global", "Golden", "Green", "Horizon", "Iron", "Lunar",
		"Modern", "North", "Open", "Prime", "Quantum", "Rapid", "Silver", "Solid",
		"Summit", "True", "United", "Vivid", "Western", "Wild",
	}
	nameNouns = []string{
		"Analytics", "Anchor", "Bridge", "Cloud", "Compass", "Data", "Delta", "Dynamics",
		"Engine", "Field", "Forge", "Frontier", "Harbor", "Labs", "Logic", "Matrix",
		"Network", "Orbit", "Peak", "Pioneer", "Pulse", "Signal", "Spark", "Stream",
		"Systems", "Vector", "Venture", "Vision", "Works", "Yard",
	}
	nameSuffixes = []string{"Group", "Inc", "LLC", "and Sons", "Partners", "Holdings", "Co", "Team"}
)

// randomTeams builds count uniquely named teams. A team's parent, when it
// has one, is always an earlier entry.
func randomTeams(count int, seed uint64) []db.NewTeam {
	r := rand.New(rand.NewPCG(seed, seed>>1|1))
	used := make(map[string]bool, count)
	batch := make([]db.NewTeam, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s %s %s",
			nameAdjectives[r.IntN(len(nameAdjectives))],
			nameNouns[r.IntN(len(nameNouns))],
			nameSuffixes[r.IntN(len(nameSuffixes))])
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s %s %s %d",
				nameAdjectives[r.IntN(len(nameAdjectives))],
				nameNouns[r.IntN(len(nameNouns))],
				nameSuffixes[r.IntN(len(nameSuffixes))], n)
		}
		used[name] = true

		parent := -1
		if i > 0 && r.IntN(2) == 0 {
			parent = r.IntN(i)
		}
		batch = append(batch, db.NewTeam{Name: name, ParentIndex: parent})
	}
	return batch
}
