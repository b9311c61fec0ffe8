package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/mops"
)

var importFromSink string

var importCmd = &cobra.Command{
	Use:   "import <client-id> [file]",
	Short: "Import a bundle into a client",
	Long: `Import a checksummed bundle into a client.

The bundle is read from [file], stdin, or the bundle sink (--from-sink).
Its checksum is recomputed over the payload; a bundle that fails the check
is rejected and nothing is written. On success the payload replaces the
workspace except for the audit log, which keeps the current entries
followed by the bundle's.

Examples:
  mops import acme acme.json
  mops export acme | mops import acme-copy
  mops import acme --from-sink acme-1717171717171.json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			var (
				doc *model.Workspace
				err error
			)
			if importFromSink != "" {
				doc, err = c.ImportFrom(ctx, id, importFromSink)
			} else {
				path := ""
				if len(args) == 2 {
					path = args[1]
				}
				var data []byte
				if data, err = readInput(cmd, path); err != nil {
					return err
				}
				doc, err = c.Import(ctx, id, data)
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(doc)
			}
			fmt.Printf("Imported bundle into %s\n", color.ClientID(string(id)))
			fmt.Printf("  Audit entries: %d\n", len(doc.MeasurementContract.AuditLog))
			return nil
		})
	},
}

func init() {
	importCmd.Flags().StringVar(&importFromSink, "from-sink", "", "read the named bundle from the configured bundle sink")
	rootCmd.AddCommand(importCmd)
}
