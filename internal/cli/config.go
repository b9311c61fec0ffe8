package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/mops/internal/repo"
	"github.com/jvs-project/mops/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage mops configuration",
	Long: `Manage mops configuration stored in .mops/config.yaml.

MOPS_* environment variables override the file when the store is opened;
show and get print the effective values.

Available commands:
  show              - Show current configuration
  set <key> <value> - Set a configuration value
  get <key>         - Get a configuration value`,
	DisableFlagsInUseLine: true,
}

func requireDataDir() (*repo.Repo, error) {
	dir, err := workDir()
	if err != nil {
		return nil, err
	}
	r, err := repo.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("%s", formatNotInDataDirError())
	}
	return r, nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Show the current mops configuration from .mops/config.yaml.",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := requireDataDir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(r.Root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = cfg.Redacted()
		if jsonOutput {
			return outputJSON(cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Println("# mops configuration")
		fmt.Printf("# Location: %s\n\n", config.Path(r.Root))
		fmt.Print(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in .mops/config.yaml.

Examples:
  mops config set history.max_snapshots 10
  mops config set backend.type sqlite
  mops config set webhooks.enabled true

Available keys:
  ` + strings.Join(config.Keys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := requireDataDir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(r.Root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		key, value := args[0], args[1]
		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		if err := config.Save(r.Root, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]string{"key": key, "value": value})
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value.

Examples:
  mops config get backend.type
  mops config get history.max_snapshots`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := requireDataDir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(r.Root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		key := args[0]
		value, err := cfg.Get(key)
		if err != nil {
			return fmt.Errorf("get config: %w", err)
		}
		if jsonOutput {
			return outputJSON(map[string]string{"key": key, "value": value})
		}
		if value == "" {
			fmt.Printf("%s (not set)\n", key)
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
