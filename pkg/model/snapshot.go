package model

import (
	"encoding/json"
	"time"
)

// Snapshot is an immutable copy of a workspace taken on save.
// TS is unix milliseconds and unique per client.
type Snapshot struct {
	TS   int64     `json:"ts"`
	Data Workspace `json:"data"`
}

// Time returns TS as a UTC time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.TS).UTC()
}

// ExportBundle is the portable, checksummed envelope of one workspace.
type ExportBundle struct {
	Type          string    `json:"type"`
	Version       string    `json:"version"`
	ExportedAt    time.Time `json:"exportedAt"`
	ClientID      ClientID  `json:"clientId"`
	SchemaVersion int       `json:"schemaVersion"`
	Checksum      HashValue `json:"checksum"`
	Payload       Workspace `json:"payload"`
}

// RawExportBundle is an ExportBundle whose payload is kept as the exact
// bytes that were received, so the checksum is computed over what was sent.
type RawExportBundle struct {
	Type          string          `json:"type"`
	Version       string          `json:"version"`
	ExportedAt    time.Time       `json:"exportedAt"`
	ClientID      ClientID        `json:"clientId"`
	SchemaVersion int             `json:"schemaVersion"`
	Checksum      HashValue       `json:"checksum"`
	Payload       json.RawMessage `json:"payload"`
}

// ClientRecord is a client directory entry.
type ClientRecord struct {
	ID         ClientID  `json:"id"`
	ClientName string    `json:"clientName"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Snapshots  int       `json:"snapshots"`
}
