package model

// ClientID identifies one client tenant. It is the namespace for every
// storage key the workspace store owns for that client.
type ClientID string

// String returns the client ID as string.
func (id ClientID) String() string {
	return string(id)
}

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// Export bundle constants.
const (
	// ExportMarker is the required value of ExportBundle.Type.
	ExportMarker = "workspace_export_marker"

	// SchemaVersion is the current workspace document schema.
	// Bundles written with any version in [1, SchemaVersion] stay importable.
	SchemaVersion = 1

	// DefaultMaxSnapshots bounds the per-client rolling history.
	DefaultMaxSnapshots = 5
)
