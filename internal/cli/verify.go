package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/internal/verify"
	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/mops"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [<client-id>]",
	Short: "Verify stored workspaces",
	Long: `Verify stored workspaces.

Checks that each document decodes, that snapshot timestamps strictly
increase, that the newest snapshot matches the current document and that
the journal hash chain is intact. Exits non-zero on errors or tampering.

Examples:
  mops verify         # Verify every client
  mops verify acme    # Verify one client`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id model.ClientID
		if len(args) == 1 {
			id = clientArg(args)
		}
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			results, err := c.Verify(ctx, id)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Severity == verify.SeverityError || r.Severity == verify.SeverityCritical {
					failed++
				}
			}

			if jsonOutput {
				if err := outputJSON(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					fmt.Printf("%-24s  %s", color.ClientID(string(r.ClientID)), verifyStatus(r))
					if r.Error != "" {
						fmt.Printf("  %s", color.Dim(r.Error))
					}
					fmt.Println()
				}
				if len(results) == 0 {
					fmt.Println("No clients to verify.")
				}
			}

			if failed > 0 {
				return fmt.Errorf("verification failed for %d client(s)", failed)
			}
			return nil
		})
	},
}

func verifyStatus(r *mops.VerifyResult) string {
	switch {
	case r.TamperDetected:
		return color.Error("TAMPERED")
	case r.Severity == verify.SeverityError:
		return color.Error("ERROR")
	case r.Severity == verify.SeverityWarning:
		return color.Warning("WARNING")
	default:
		return color.Success("OK")
	}
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
