package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/mops"
)

var showCmd = &cobra.Command{
	Use:   "show <client-id>",
	Short: "Print a client's current workspace",
	Long: `Print a client's current workspace document as JSON.

Sections the stored document lacks are printed with their empty defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			doc, err := c.Load(ctx, id)
			if err != nil {
				return err
			}
			if doc == nil {
				return errors.New(formatClientNotFoundError(ctx, c, id))
			}
			return outputJSON(doc)
		})
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
