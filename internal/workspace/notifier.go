package workspace

// Notifier receives store events after they are persisted.
// *webhook.Client implements it.
type Notifier interface {
	WorkspaceSaved(clientID string, ts int64)
	SnapshotRestored(clientID string, ts int64)
	WorkspaceImported(clientID, checksum string)
	ImportRejected(clientID string, reason error)
	WorkspaceExported(clientID, checksum string)
	ClientRemoved(clientID string)
}

type nopNotifier struct{}

func (nopNotifier) WorkspaceSaved(string, int64)     {}
func (nopNotifier) SnapshotRestored(string, int64)   {}
func (nopNotifier) WorkspaceImported(string, string) {}
func (nopNotifier) ImportRejected(string, error)     {}
func (nopNotifier) WorkspaceExported(string, string) {}
func (nopNotifier) ClientRemoved(string)             {}
