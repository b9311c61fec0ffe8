package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/fsutil"
	"github.com/jvs-project/mops/pkg/mops"
)

var (
	exportOutput string
	exportToSink bool
)

var exportCmd = &cobra.Command{
	Use:   "export <client-id>",
	Short: "Export a workspace as a checksummed bundle",
	Long: `Export a client's current workspace as a checksummed bundle.

By default the bundle is printed to stdout. With --sink it is stored in the
configured bundle sink (bundles.minio or bundles.dir).

Examples:
  mops export acme > acme.json
  mops export acme -o acme.json
  mops export acme --sink`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			if exportToSink {
				loc, err := c.ExportTo(ctx, id)
				if err != nil {
					return err
				}
				return reportExport(string(id), loc)
			}

			bundle, err := c.Export(ctx, id)
			if err != nil {
				return err
			}
			if exportOutput == "" || exportOutput == "-" {
				fmt.Println(bundle)
				return nil
			}
			if err := fsutil.AtomicWrite(exportOutput, []byte(bundle+"\n"), 0644); err != nil {
				return fmt.Errorf("write bundle: %w", err)
			}
			return reportExport(string(id), exportOutput)
		})
	},
}

func reportExport(id, location string) error {
	if jsonOutput {
		return outputJSON(map[string]any{"client_id": id, "location": location})
	}
	fmt.Printf("Exported %s to %s\n", color.ClientID(id), color.Success(location))
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the bundle to a file instead of stdout")
	exportCmd.Flags().BoolVar(&exportToSink, "sink", false, "store the bundle in the configured bundle sink")
	exportCmd.MarkFlagsMutuallyExclusive("output", "sink")
	rootCmd.AddCommand(exportCmd)
}
