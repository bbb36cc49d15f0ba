package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/maloquacious/gcsdb/internal/config"
	"github.com/maloquacious/gcsdb/internal/logger"
	"github.com/maloquacious/gcsdb/internal/store"
	"github.com/maloquacious/gcsdb/internal/store/sqlite"
	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"
)

var (
	version   = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
	buildDate = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every command after flags are parsed.
type app struct {
	configFile string
	envFile    string
	dbPath     string
	logLevel   string

	stdout io.Writer
	stderr io.Writer

	cfg *config.Config
	log logger.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "gcsdb",
		Short: "Ground station datastore bootstrap",
		Long: `gcsdb creates the ground station SQLite database and its user, session
and mission tables if they do not already exist. Run without a command it
behaves like "gcsdb db create".`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		RunE:              a.runDBCreate,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "optional config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional dotenv file")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", config.DefaultDBPath, "path to the database file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	dbCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the database file and schema if missing",
		Args:  cobra.NoArgs,
		RunE:  a.runDBCreate,
	}
	dbVerifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify schema integrity and version without modifying the database",
		Args:  cobra.NoArgs,
		RunE:  a.runDBVerify,
	}
	dbCmd.AddCommand(dbCreateCmd, dbVerifyCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "gcsdb %s (schema version %d)\n", version.String(), sqlite.SchemaVersion)
			if buildDate != "" {
				fmt.Fprintf(a.stdout, "built %s\n", buildDate)
			}
		},
	}

	rootCmd.AddCommand(dbCmd, versionCmd)
	return rootCmd
}

// load resolves configuration and the logger before any command runs.
func (a *app) load(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configFile, a.envFile, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(a.stderr, level)
	a.log.Debug("config: %+v", *cfg)
	return nil
}

func (a *app) storeOptions() sqlite.Options {
	return sqlite.Options{
		JournalMode: a.cfg.Database.JournalMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
		Logger:      a.log,
	}
}

func (a *app) runDBCreate(cmd *cobra.Command, args []string) error {
	return sqlite.Initialize(cmd.Context(), a.cfg.Database.Path, a.storeOptions())
}

// verifyReport is the JSON summary written by "db verify".
type verifyReport struct {
	Path          string           `json:"path"`
	State         store.StoreState `json:"state"`
	SchemaVersion int              `json:"schemaVersion"`
	Tables        []store.Table    `json:"tables"`
	Problems      []string         `json:"problems"`
}

func (a *app) runDBVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := a.cfg.Database.Path

	report := verifyReport{
		Path:   path,
		State:  store.StateMissing,
		Tables: []store.Table{},
	}

	exists, err := store.CheckExists(path)
	if err != nil {
		return err
	}
	if exists {
		opts := a.storeOptions()
		opts.ReadOnly = true
		s := sqlite.New(path, opts)
		if err := s.Open(ctx); err != nil {
			return err
		}
		defer s.Close()

		if report.State, err = s.CheckState(ctx); err != nil {
			return err
		}
		if report.SchemaVersion, err = s.SchemaVersion(ctx); err != nil {
			return err
		}
		tables, err := s.Describe(ctx)
		if err != nil {
			return err
		}
		if tables != nil {
			report.Tables = tables
		}
	}

	report.Problems = store.Diff(sqlite.Expected(), report.Tables)
	if report.Problems == nil {
		report.Problems = []string{}
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if report.State != store.StateReady || len(report.Problems) > 0 {
		return fmt.Errorf("database %s is not ready: state %s, %d schema problem(s)", path, report.State, len(report.Problems))
	}
	a.log.Info("database %s verified", path)
	return nil
}
