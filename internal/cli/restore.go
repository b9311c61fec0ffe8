package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/mops"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <client-id> <ts>",
	Short: "Restore a snapshot",
	Long: `Make the snapshot taken at <ts> the client's current workspace.

The current audit log is kept, followed by the snapshot's entries. The
result is saved as a new snapshot, so a restore can itself be undone.

Examples:
  mops snapshots acme
  mops restore acme 1717171717171`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		ts, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errclass.ErrValidation.WithMessagef("snapshot ts must be an integer: %q", args[1])
		}
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			doc, err := c.RestoreSnapshot(ctx, id, ts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(doc)
			}
			fmt.Printf("Restored %s to snapshot %s\n", color.ClientID(string(id)), color.Timestamp(args[1]))
			fmt.Printf("  Audit entries: %d\n", len(doc.MeasurementContract.AuditLog))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
