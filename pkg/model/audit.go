package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// AuditLogEntry is one governance action recorded in a measurement
// contract. Only ID is interpreted; every other key is carried verbatim.
// An entry that was JSON null has Null set and is written back as null.
type AuditLogEntry struct {
	ID     string
	Fields map[string]any
	Null   bool
}

// MarshalJSON writes Fields with "id" set from ID.
func (e AuditLogEntry) MarshalJSON() ([]byte, error) {
	if e.Null && e.ID == "" && len(e.Fields) == 0 {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	if e.ID != "" {
		out["id"] = e.ID
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads any JSON object or null. An id that is not a
// non-empty string stays in Fields.
func (e *AuditLogEntry) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*e = AuditLogEntry{Null: true}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entry := AuditLogEntry{}
	if id, ok := raw["id"].(string); ok && id != "" {
		entry.ID = id
		delete(raw, "id")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	*e = entry
	return nil
}

// JournalEventType identifies a store operation recorded in the journal.
type JournalEventType string

const (
	EventWorkspaceSave   JournalEventType = "workspace_save"
	EventSnapshotRestore JournalEventType = "snapshot_restore"
	EventWorkspaceImport JournalEventType = "workspace_import"
	EventWorkspaceExport JournalEventType = "workspace_export"
	EventImportRejected  JournalEventType = "import_rejected"
	EventClientRemove    JournalEventType = "client_remove"
)

// JournalRecord is a single line in a client's operation journal (JSONL).
type JournalRecord struct {
	RecordID   string           `json:"record_id"`
	Timestamp  time.Time        `json:"timestamp"`
	EventType  JournalEventType `json:"event_type"`
	ClientID   ClientID         `json:"client_id"`
	SnapshotTS int64            `json:"snapshot_ts,omitempty"`
	Details    map[string]any   `json:"details,omitempty"`
	PrevHash   HashValue        `json:"prev_hash"`
	RecordHash HashValue        `json:"record_hash"`
}

// JournalCheckpoint is the first line of a journal that has been trimmed.
// Hash is the record_hash of the newest dropped record, so the oldest
// retained record still links to something verifiable.
type JournalCheckpoint struct {
	Hash    HashValue `json:"checkpoint"`
	Trimmed int       `json:"trimmed"`
}
