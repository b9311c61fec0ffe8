package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/internal/repo"
	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/config"
)

var (
	initBackend      string
	initDSN          string
	initMaxSnapshots int
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new mops data directory",
	Long: `Initialize a new mops data directory.

This creates:
  - .mops/config.yaml with the default configuration
  - .mops/kv/ for the file backend
  - .mops/bundles/ for exported bundles
  - format_version and store_id files

Examples:
  mops init                          # Initialize the current directory
  mops init ./store --backend sqlite # Keep documents in .mops/mops.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dataDir
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path = cwd
		}

		cfg := config.Default()
		if initBackend != "" {
			cfg.Backend.Type = initBackend
		}
		cfg.Backend.DSN = initDSN
		if initMaxSnapshots > 0 {
			cfg.History.MaxSnapshots = initMaxSnapshots
		}

		r, err := repo.Init(path, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize data directory: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"root":           r.Root,
				"format_version": r.FormatVersion,
				"store_id":       r.StoreID,
				"backend":        cfg.Backend.Type,
			})
		}
		fmt.Printf("Initialized mops data directory in %s\n", color.Success(r.Root))
		fmt.Printf("  Backend: %s\n", color.Highlight(cfg.Backend.Type))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", "", "backend type (memory, file, sqlite, postgres, mysql)")
	initCmd.Flags().StringVar(&initDSN, "dsn", "", "data source name for sql backends")
	initCmd.Flags().IntVar(&initMaxSnapshots, "max-snapshots", 0, "snapshots kept per client (default 5)")
	rootCmd.AddCommand(initCmd)
}
