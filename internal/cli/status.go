package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store information",
	Long:  "Show the data directory, backend, retention bound and client count.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			st := c.Status()
			clients, err := c.Clients(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(map[string]any{
					"root":     c.Root(),
					"store_id": c.StoreID(),
					"clients":  len(clients),
					"status":   st,
				})
			}
			fmt.Printf("Data directory: %s\n", color.Highlight(c.Root()))
			fmt.Printf("Store ID:       %s\n", c.StoreID())
			fmt.Printf("Backend:        %s\n", st.Backend)
			fmt.Printf("Max snapshots:  %d\n", st.MaxSnapshots)
			fmt.Printf("Clients:        %d\n", len(clients))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
