package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"teamtree/internal/config"
	"teamtree/internal/db"
	"teamtree/internal/hierarchy"
	"teamtree/internal/logging"
	"teamtree/internal/metrics"
	"teamtree/internal/tracing"
)

const (
	dbEnv      = "TEAMTREE_DB"
	dbFileName = ".teamtree.db"
)

var (
	dbPath      string
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
)

// version is set at build time with -ldflags "-X teamtree/cmd.version=...".
var version = "dev"

// Loaded once per invocation by the root PersistentPreRunE.
var (
	cfg           = config.Default()
	mets          = metrics.New()
	shutdownTrace = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "teamtree",
	Short:         "Team hierarchy materializer, query engine and diagram layout",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if metricsFile != "" {
			cfg.Metrics.Textfile = metricsFile
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))

		shutdown, err := tracing.Setup(cmd.Context(), cfg.Tracing, version)
		if err != nil {
			return err
		}
		shutdownTrace = shutdown
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run executes the command line, then flushes traces and writes the
// metrics textfile whether or not the command failed.
func run(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if ferr := flush(ctx); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

func flush(ctx context.Context) error {
	if err := shutdownTrace(ctx); err != nil {
		logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr).Warn("flushing traces", "error", err)
	}
	shutdownTrace = func(context.Context) error { return nil }
	if cfg.Metrics.Textfile == "" {
		return nil
	}
	return mets.WriteTextfile(cfg.Metrics.Textfile)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to "+dbFileName+" database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default $"+config.EnvPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
}

// DiscoverDB finds the database path using priority:
// env > flag > config > walk-up > XDG data dir.
// Paths given explicitly are created on open if missing.
func DiscoverDB() (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv(dbEnv); envPath != "" {
		return envPath, nil
	}

	// 2. CLI flag
	if dbPath != "" {
		return dbPath, nil
	}

	// 3. Config file
	if cfg.Database.Path != "" {
		return cfg.Database.Path, nil
	}

	// 4. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, dbFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 5. XDG data dir
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("no database location (set %s or use --db): %w", dbEnv, err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	dir = filepath.Join(dataHome, "teamtree")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return filepath.Join(dir, "teamtree.db"), nil
}

// OpenDatabase discovers and opens the database
func OpenDatabase(ctx context.Context) (*db.DB, error) {
	path, err := DiscoverDB()
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("opening database", "path", path)
	return db.OpenDB(ctx, path, cfg.Database.BusyTimeoutMs)
}

// stack is the hierarchy wiring shared by commands.
type stack struct {
	db      *db.DB
	store   *hierarchy.Store
	mat     *hierarchy.Materializer
	engine  *hierarchy.Engine
	service *hierarchy.Service
}

func openStack(ctx context.Context) (*stack, error) {
	d, err := OpenDatabase(ctx)
	if err != nil {
		return nil, err
	}
	store := hierarchy.NewStore(d)
	mat := hierarchy.NewMaterializer(store, store, mets)
	return &stack{
		db:      d,
		store:   store,
		mat:     mat,
		engine:  hierarchy.NewEngine(store, mat, mets),
		service: hierarchy.NewService(store, store, mat),
	}, nil
}

func (s *stack) Close() error { return s.db.Close() }

// ResolveTeam finds a team by numeric id or exact name. A name shared by
// several teams is ambiguous.
func ResolveTeam(ctx context.Context, d *db.DB, reference string) (*db.Team, error) {
	// 1. Exact ID match
	if id, err := strconv.ParseInt(reference, 10, 64); err == nil {
		team, err := d.TeamByID(ctx, id)
		if err == nil {
			return team, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	// 2. Name match
	teams, err := d.TeamsWithRelations(ctx, reference)
	if err != nil {
		return nil, err
	}
	switch len(teams) {
	case 0:
		return nil, fmt.Errorf("team not found: %s", reference)
	case 1:
		return &teams[0].Team, nil
	}
	lines := make([]string, len(teams))
	for i, t := range teams {
		parent := "(root)"
		if t.Parent != nil {
			parent = "under " + t.Parent.Name
		}
		lines[i] = fmt.Sprintf("  %d %s %s", t.ID, t.Name, parent)
	}
	return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a team ID instead.",
		reference, len(teams), strings.Join(lines, "\n"))
}
