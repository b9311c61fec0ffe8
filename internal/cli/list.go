package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	Long:  "List every client in the client directory, sorted by ID.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			clients, err := c.Clients(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(clients)
			}
			if len(clients) == 0 {
				fmt.Println("No clients.")
				return nil
			}
			fmt.Printf("%-24s  %-28s  %9s  %s\n", "CLIENT", "NAME", "SNAPSHOTS", "UPDATED")
			for _, rec := range clients {
				fmt.Printf("%-24s  %-28s  %9d  %s\n",
					color.ClientID(string(rec.ID)), rec.ClientName, rec.Snapshots,
					color.Dim(rec.UpdatedAt.Format("2006-01-02 15:04:05")))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
