package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/mops"
)

var diffCmd = &cobra.Command{
	Use:   "diff <client-id> <from-ts> [<to-ts>]",
	Short: "Show field changes between snapshots",
	Long: `Show the fields that differ between two snapshots of a client.

<to-ts> defaults to the current document. Use "current" for either
timestamp to select the current document.

Examples:
  mops diff acme 1717171717171
  mops diff acme 1717171717171 1717171800000`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		fromTS, err := parseSnapshotTS(args[1])
		if err != nil {
			return err
		}
		toTS := mops.CurrentDocument
		if len(args) == 3 {
			if toTS, err = parseSnapshotTS(args[2]); err != nil {
				return err
			}
		}
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			result, err := c.Diff(ctx, id, fromTS, toTS)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(result)
			}
			fmt.Print(result.FormatHuman())
			return nil
		})
	},
}

func parseSnapshotTS(s string) (int64, error) {
	if s == "current" {
		return mops.CurrentDocument, nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return 0, errclass.ErrValidation.WithMessagef("snapshot ts must be a positive integer or %q: %q", "current", s)
	}
	return ts, nil
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
