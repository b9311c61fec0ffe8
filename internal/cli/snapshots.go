package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <client-id>",
	Short: "List a client's snapshots",
	Long: `List a client's snapshot history, oldest first.

Use the ts column with 'mops restore'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			snaps, err := c.Snapshots(ctx, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(snaps)
			}
			if len(snaps) == 0 {
				fmt.Printf("No snapshots for %s.\n", color.ClientID(string(id)))
				return nil
			}
			for _, s := range snaps {
				fmt.Printf("%s  %s  %d audit entries\n",
					color.Timestamp(strconv.FormatInt(s.TS, 10)),
					color.Dim(s.Time().Format("2006-01-02 15:04:05.000")),
					len(s.Data.MeasurementContract.AuditLog))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}
