package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/mops"
)

var saveFile string

var saveCmd = &cobra.Command{
	Use:   "save <client-id>",
	Short: "Save a workspace document",
	Long: `Save a workspace document for a client.

The document is read as JSON from --file or stdin. Its id is replaced by
<client-id>. Missing sections are filled with empty defaults. Every save
adds a snapshot; the oldest snapshots beyond history.max_snapshots are
dropped.

Examples:
  mops save acme -f acme.json
  cat acme.json | mops save acme`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := clientArg(args)
		data, err := readInput(cmd, saveFile)
		if err != nil {
			return err
		}
		var doc model.Workspace
		if err := json.Unmarshal(data, &doc); err != nil {
			return errclass.ErrValidation.WithMessagef("workspace is not valid JSON: %v", err)
		}
		doc.ID = id

		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			ts, err := c.Save(ctx, &doc)
			if err != nil {
				return err
			}
			snaps, err := c.Snapshots(ctx, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(map[string]any{
					"client_id": id,
					"ts":        ts,
					"snapshots": len(snaps),
				})
			}
			fmt.Printf("Saved %s (snapshot %s, %d kept)\n",
				color.ClientID(string(id)), color.Timestamp(strconv.FormatInt(ts, 10)), len(snaps))
			return nil
		})
	},
}

func init() {
	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "read the document from a file instead of stdin")
	rootCmd.AddCommand(saveCmd)
}
