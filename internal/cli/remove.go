package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var removePurgeJournal bool

var removeCmd = &cobra.Command{
	Use:   "remove <client-id>",
	Short: "Remove a client",
	Long: `Remove a client's workspace, snapshot history and directory entry.

The journal is kept and records the removal unless --purge-journal is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			if err := c.Remove(ctx, id); err != nil {
				return err
			}
			if removePurgeJournal {
				if err := c.PurgeJournal(ctx, id); err != nil {
					return err
				}
			}
			if jsonOutput {
				return outputJSON(map[string]any{"client_id": id, "removed": true, "journal_purged": removePurgeJournal})
			}
			fmt.Printf("Removed %s\n", color.ClientID(string(id)))
			return nil
		})
	},
}

func init() {
	removeCmd.Flags().BoolVar(&removePurgeJournal, "purge-journal", false, "also delete the client's journal")
	rootCmd.AddCommand(removeCmd)
}
