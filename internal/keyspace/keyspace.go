// Package keyspace names the storage keys the workspace store owns.
package keyspace

import (
	"strings"

	"github.com/jvs-project/mops/pkg/model"
)

const (
	dataPrefix      = "client-data:"
	snapshotsPrefix = "client-snapshots:"
	journalPrefix   = "client-journal:"

	// Directory is the key of the client directory record.
	Directory = "client-credentials"
)

// Data is the key holding the current workspace document for id.
func Data(id model.ClientID) string { return dataPrefix + string(id) }

// Snapshots is the key holding the snapshot history for id.
func Snapshots(id model.ClientID) string { return snapshotsPrefix + string(id) }

// Journal is the key holding the operation journal for id.
func Journal(id model.ClientID) string { return journalPrefix + string(id) }

// JournalPrefix is the key prefix shared by every client journal.
const JournalPrefix = journalPrefix

// ClientOf extracts the client ID from a data key.
func ClientOf(key string) (model.ClientID, bool) {
	id, ok := strings.CutPrefix(key, dataPrefix)
	if !ok || id == "" {
		return "", false
	}
	return model.ClientID(id), true
}
