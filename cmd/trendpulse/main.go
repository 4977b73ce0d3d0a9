package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mwaldner/trendpulse/internal/config"
	"github.com/mwaldner/trendpulse/internal/database"
	"github.com/mwaldner/trendpulse/internal/publish"
	"github.com/mwaldner/trendpulse/internal/trends"
	"github.com/mwaldner/trendpulse/internal/updater"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "trendpulse",
	Short:   "Meditation search trend datasets",
	Long:    "Trendpulse fetches Google Trends interest for meditation keywords, derives dashboard datasets, and publishes them to a git repository.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(pruneLogsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trendpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/trendpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the dataset repository path and keywords.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run ledger and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", time.Now().Format("2006-01-02"))
		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		fmt.Printf("  With changes: %d\n", stats.ChangedRuns)
		if stats.LastRunAt != "" {
			fmt.Printf("  Last run: %s\n", stats.LastRunAt)
		}
		if stats.LastDataDate != "" {
			fmt.Printf("  Latest data date: %s\n", stats.LastDataDate)
		}
		fmt.Println("\nArtifacts:")
		fmt.Printf("  Tracked names: %d\n", stats.ArtifactNames)
		fmt.Printf("  Versions recorded: %d\n", stats.TotalArtifacts)
		fmt.Printf("\nDataset repo: %s\n", cfg.RepoDir())
		fmt.Printf("Database: %s\n", db.Path())
		return nil
	},
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent updater runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetRecentRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded. Run 'trendpulse update' first.")
			return nil
		}

		for _, r := range runs {
			outcome := "no change"
			if r.Changed {
				outcome = "updated"
			}
			if !r.Succeeded {
				outcome = "failed"
			}
			if r.FinishedAt == nil {
				outcome = "incomplete"
			}
			line := fmt.Sprintf("  [%d] %s  %s", r.ID, r.StartedAt, outcome)
			if r.LatestDataDate != nil && *r.LatestDataDate != "" {
				line += fmt.Sprintf("  (data through %s)", *r.LatestDataDate)
			}
			fmt.Println(line)
			if r.Note != nil && *r.Note != "" {
				fmt.Printf("        %s\n", *r.Note)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
}

// --- update command ---

var updateForce bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch trends and rebuild the dataset files",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		upd := updater.New(cfg, db, trends.New(cfg))
		result, err := upd.Run(context.Background(), updateForce)
		if errors.Is(err, updater.ErrAlreadyRan) {
			fmt.Println("Already ran today. Use --force to run again.")
			return nil
		}
		if err != nil {
			return err
		}

		if result.Changed {
			fmt.Printf("\nWrote %d dataset files to %s\n", len(result.Artifacts), cfg.ArtifactsDir())
		}
		return nil
	},
}

// --- publish command ---

var publishForce bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run the updater and commit changed datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		git, err := publish.NewExecGit(cfg.RepoDir())
		if err != nil {
			return err
		}

		upd := updater.New(cfg, db, trends.New(cfg))
		return publish.New(cfg, upd, git).Run(context.Background(), publishForce)
	},
}

var pruneLogsCmd = &cobra.Command{
	Use:   "prune-logs",
	Short: "Delete run logs past the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		removed := publish.PruneOldLogs(cfg.LogsDir(), cfg.LogRetention(), time.Now())
		fmt.Printf("Removed %d log file(s) from %s\n", removed, cfg.LogsDir())
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "Run even if an update already ran today")
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "Run even if an update already ran today")
}

func openDB() (*database.DB, error) {
	repoDir := cfg.RepoDir()
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dataset repo directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
