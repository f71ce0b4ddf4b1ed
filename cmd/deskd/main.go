package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/config"
	"github.com/openhelpdesk/deskd/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	dbPath     string
	jsonOutput bool
	quietFlag  bool

	cfg    *config.Config
	db     *store.DB
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deskd",
	Short: "deskd - Helpdesk email automation",
	Long:  "Deskd: ingest support mail, classify intent, route tickets, queue reviewed drafts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile())
		if err != nil {
			return err
		}

		logger, err = buildLogger()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		// Commands that work without a database.
		switch cmd.Name() {
		case "init", "help", "version":
			return nil
		}

		path := dbPath
		if path == "" {
			path = cfg.DBPath
		}
		if path == "" {
			path = store.DiscoverDB()
		}
		if path == "" {
			return fmt.Errorf("no deskd database found; run 'deskd init' first")
		}

		db, err = store.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
		if logger != nil {
			logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deskd version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the deskd database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbPath
		if path == "" {
			path = cfg.DBPath
		}
		if path == "" {
			path = store.DefaultDBPath()
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
		s, err := store.Open(path)
		if err != nil {
			return err
		}
		s.Close()

		if !quietFlag {
			fmt.Printf("Initialized deskd at %s\n", path)
		}
		return nil
	},
}

// configFile resolves the config path: flag first, then environment.
func configFile() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("DESKD_CONFIG")
}

func buildLogger() (*zap.Logger, error) {
	if cfg.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: $DESKD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .deskd/desk.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
