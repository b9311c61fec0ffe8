package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var journalVerify bool

var journalCmd = &cobra.Command{
	Use:   "journal <client-id>",
	Short: "Show a client's operation journal",
	Long: `Show the hash-chained journal of store operations for a client.

Each save, restore, export, import, rejected import and removal appends a
record linked to the previous one by hash. --verify checks the chain.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			if journalVerify {
				n, err := c.VerifyJournal(ctx, id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputJSON(map[string]any{"client_id": id, "records": n, "valid": true})
				}
				fmt.Printf("%s: %d records, chain %s\n", color.ClientID(string(id)), n, color.Success("OK"))
				return nil
			}

			records, err := c.Journal(ctx, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(records)
			}
			if len(records) == 0 {
				fmt.Printf("No journal records for %s.\n", color.ClientID(string(id)))
				return nil
			}
			for _, r := range records {
				line := fmt.Sprintf("%s  %-18s", color.Dim(r.Timestamp.Format("2006-01-02 15:04:05")), r.EventType)
				if r.SnapshotTS != 0 {
					line += fmt.Sprintf("  ts=%d", r.SnapshotTS)
				}
				if code, ok := r.Details["code"].(string); ok {
					line += "  " + color.Error(code)
				}
				fmt.Println(line)
			}
			return nil
		})
	},
}

func init() {
	journalCmd.Flags().BoolVar(&journalVerify, "verify", false, "verify the hash chain")
	rootCmd.AddCommand(journalCmd)
}
