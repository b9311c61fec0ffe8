package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/internal/doctor"
	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var (
	doctorStrict bool
	doctorRepair bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check data directory health",
	Long: `Check the health of the data directory.

Checks the format version, config, store ID, backend layout and temp files
left by interrupted writes. --strict also verifies every client.
--repair removes the leftover temp files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := requireDataDir()
		if err != nil {
			return err
		}

		var removed []string
		if doctorRepair {
			if removed, err = doctor.NewDoctor(r.Root, nil).Repair(); err != nil {
				return err
			}
		}

		var result *mops.DoctorResult
		if doctorStrict {
			err = withClient(cmd, func(ctx context.Context, c *mops.Client) error {
				result, err = c.Doctor(ctx, true)
				return err
			})
		} else {
			result, err = doctor.NewDoctor(r.Root, nil).Check(cmd.Context(), false)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := outputJSON(map[string]any{"result": result, "repaired": removed}); err != nil {
				return err
			}
		} else {
			for _, path := range removed {
				fmt.Printf("Removed %s\n", color.Dim(path))
			}
			if len(result.Findings) == 0 {
				fmt.Println(color.Success("No problems found."))
			}
			for _, f := range result.Findings {
				fmt.Printf("[%s] %s: %s\n", severityLabel(f.Severity), f.Category, f.Description)
			}
		}
		if !result.Healthy {
			return fmt.Errorf("data directory is unhealthy")
		}
		return nil
	},
}

func severityLabel(s string) string {
	switch s {
	case "critical", "error":
		return color.Error(s)
	case "warning":
		return color.Warning(s)
	default:
		return color.Dim(s)
	}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "also verify every client")
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "remove temp files left by interrupted writes")
	rootCmd.AddCommand(doctorCmd)
}
