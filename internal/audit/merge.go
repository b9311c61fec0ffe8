// Package audit merges measurement-contract audit logs and keeps the
// hash-chained operation journal of each client.
package audit

import "github.com/jvs-project/mops/pkg/model"

// Merge combines two audit logs, current entries first and then incoming
// ones, each in its original order. Entries are never dropped or
// deduplicated, so a restore or import can only grow the log. The result is
// a new slice and is never nil.
func Merge(current, incoming []model.AuditLogEntry) []model.AuditLogEntry {
	out := make([]model.AuditLogEntry, 0, len(current)+len(incoming))
	out = append(out, current...)
	out = append(out, incoming...)
	return out
}
