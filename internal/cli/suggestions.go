package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/mops"
)

// suggestClients provides helpful suggestions when a client is not found.
func suggestClients(ctx context.Context, c *mops.Client, id model.ClientID) string {
	list, err := c.Clients(ctx)
	if err != nil {
		return fmt.Sprintf("Run %s to see known clients.", color.Code("mops list"))
	}
	if len(list) == 0 {
		return fmt.Sprintf("No clients exist yet. Run %s to create one.", color.Code("mops save <client-id>"))
	}

	query := strings.ToLower(string(id))
	var matches []string
	for _, rec := range list {
		if strings.HasPrefix(strings.ToLower(string(rec.ID)), query) {
			matches = append(matches, color.ClientID(string(rec.ID)))
		}
	}
	if len(matches) == 0 {
		for _, rec := range list {
			if strings.Contains(strings.ToLower(string(rec.ID)), query) {
				matches = append(matches, color.ClientID(string(rec.ID)))
			}
		}
	}
	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}
	return fmt.Sprintf("Run %s to see known clients.", color.Code("mops list"))
}

// formatClientNotFoundError formats a missing-client error with suggestions.
func formatClientNotFoundError(ctx context.Context, c *mops.Client, id model.ClientID) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("client '%s' has no workspace", id))
	sb.WriteString("\n")
	sb.WriteString(color.Dim("  " + suggestClients(ctx, c, id)))
	return sb.String()
}

// formatNotInDataDirError formats an error when no data directory is found.
func formatNotInDataDirError() string {
	var sb strings.Builder
	sb.WriteString("not a mops data directory (or any parent)")
	sb.WriteString("\n")
	sb.WriteString(color.Dim(fmt.Sprintf("  Run %s to create one.", color.Code("mops init [dir]"))))
	return sb.String()
}
