// Package workspace is the single owner of per-client workspace documents,
// their bounded snapshot history and the export/import exchange format.
//
// Every write goes through one FIFO queue drained by a single worker, so two
// saves never interleave their read-append-evict of snapshot history.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jvs-project/mops/internal/audit"
	"github.com/jvs-project/mops/internal/backend"
	"github.com/jvs-project/mops/internal/clock"
	"github.com/jvs-project/mops/internal/integrity"
	"github.com/jvs-project/mops/internal/keyspace"
	"github.com/jvs-project/mops/internal/queue"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/jsonutil"
	"github.com/jvs-project/mops/pkg/metrics"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/pathutil"
)

// DefaultBundleVersion is written to ExportBundle.Version when Options
// does not name one.
const DefaultBundleVersion = "1.0.0"

// Options configures a Store. Zero values select defaults.
type Options struct {
	MaxSnapshots int
	// MaxJournalRecords bounds each client's journal. Zero selects
	// audit.DefaultMaxRecords.
	MaxJournalRecords int
	QueueSize         int
	BundleVersion     string
	Clock             clock.Clock
	Logger            *slog.Logger
	Metrics           *metrics.Registry
	Notifier          Notifier
}

// Store reads and writes workspace documents in a backend.
type Store struct {
	kv           backend.Backend
	queue        *queue.Queue
	journal      *audit.Journal
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Registry
	notifier     Notifier
	maxSnapshots int
	version      string

	mu         sync.Mutex
	seq        int64
	lastSaveAt time.Time
	lastErr    error
	lastErrAt  time.Time
}

// New creates a Store over kv and starts its save worker.
func New(kv backend.Backend, opts Options) *Store {
	if opts.MaxSnapshots < 1 {
		opts.MaxSnapshots = model.DefaultMaxSnapshots
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.BundleVersion == "" {
		opts.BundleVersion = DefaultBundleVersion
	}
	q := queue.New(opts.QueueSize, opts.Logger)
	q.OnPending(opts.Metrics.SetPending)
	return &Store{
		kv:           kv,
		queue:        q,
		journal:      audit.NewJournal(kv, opts.Clock, opts.MaxJournalRecords),
		clock:        opts.Clock,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		maxSnapshots: opts.MaxSnapshots,
		version:      opts.BundleVersion,
	}
}

// MaxSnapshots returns the per-client retention bound.
func (s *Store) MaxSnapshots() int { return s.maxSnapshots }

// Backend returns the key-value store the Store writes to.
func (s *Store) Backend() backend.Backend { return s.kv }

// prepare validates doc and returns a normalized deep copy, so later
// changes by the caller cannot reach a queued save.
func (s *Store) prepare(doc *model.Workspace) (*model.Workspace, error) {
	if doc == nil {
		return nil, errclass.ErrValidation.WithMessage("workspace document is required")
	}
	id, err := pathutil.ValidateClientID(string(doc.ID))
	if err != nil {
		return nil, err
	}
	cp, err := jsonutil.Clone(*model.Normalize(doc))
	if err != nil {
		err = errclass.ErrStorageWrite.Wrap(err, "serialize workspace "+string(id))
		s.recordError(err)
		s.metrics.RecordSave(false, 0)
		return nil, err
	}
	cp.ID = id
	return model.Normalize(&cp), nil
}

func (s *Store) do(ctx context.Context, task queue.Task) error {
	return s.queue.Do(ctx, task)
}

// Save persists doc, appends a snapshot and evicts history beyond the
// retention bound. It waits for the write and returns the snapshot ts.
// Invalid input fails with E_VALIDATION before anything is queued; a
// backend failure fails with E_STORAGE_WRITE and is kept as the last error.
func (s *Store) Save(ctx context.Context, doc *model.Workspace) (int64, error) {
	prepared, err := s.prepare(doc)
	if err != nil {
		return 0, err
	}
	var ts int64
	err = s.do(ctx, func() error {
		var err error
		ts, err = s.persist(prepared, model.EventWorkspaceSave, nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	return ts, nil
}

// SaveAsync queues doc for saving and returns without waiting. The channel
// receives the save's result once it has run; Flush also waits for it.
func (s *Store) SaveAsync(doc *model.Workspace) (<-chan error, error) {
	prepared, err := s.prepare(doc)
	if err != nil {
		return nil, err
	}
	return s.queue.Enqueue(func() error {
		_, err := s.persist(prepared, model.EventWorkspaceSave, nil)
		return err
	})
}

// persist writes doc and its new snapshot. Runs on the queue worker only.
func (s *Store) persist(doc *model.Workspace, event model.JournalEventType, details map[string]any) (ts int64, err error) {
	ctx := context.Background()
	start := s.clock.Now()
	id := doc.ID
	defer func() {
		if err != nil {
			s.recordError(err)
			s.metrics.RecordSave(false, 0)
			s.logger.Error("workspace save failed", "client_id", id, "error", err)
		}
	}()

	data, err := json.Marshal(doc)
	if err != nil {
		return 0, errclass.ErrStorageWrite.Wrap(err, "serialize workspace "+string(id))
	}

	snaps, err := s.readSnapshots(ctx, id)
	if err != nil {
		return 0, err
	}

	ts = start.UnixMilli()
	if n := len(snaps); n > 0 && ts <= snaps[n-1].TS {
		ts = snaps[n-1].TS + 1
	}
	snaps = append(snaps, model.Snapshot{TS: ts, Data: *doc})
	evicted := 0
	if over := len(snaps) - s.maxSnapshots; over > 0 {
		snaps = append([]model.Snapshot(nil), snaps[over:]...)
		evicted = over
	}
	snapData, err := json.Marshal(snaps)
	if err != nil {
		return 0, errclass.ErrStorageWrite.Wrap(err, "serialize snapshots "+string(id))
	}

	dataKey, snapKey := keyspace.Data(id), keyspace.Snapshots(id)
	prev, hadPrev, err := s.kv.Get(ctx, dataKey)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dataKey, err)
	}
	if err := s.set(ctx, dataKey, string(data)); err != nil {
		return 0, errclass.ErrStorageWrite.Wrap(err, "write "+dataKey)
	}
	if err := s.set(ctx, snapKey, string(snapData)); err != nil {
		s.rollbackData(ctx, dataKey, prev, hadPrev)
		return 0, errclass.ErrStorageWrite.Wrap(err, "write "+snapKey)
	}

	if err := s.touchDirectory(ctx, doc, len(snaps), start.UTC()); err != nil {
		s.logger.Warn("client directory update failed", "client_id", id, "error", err)
	}

	d := map[string]any{"snapshots": len(snaps), "evicted": evicted}
	for k, v := range details {
		d[k] = v
	}
	s.appendJournal(ctx, id, event, ts, d)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.lastSaveAt = start
	s.mu.Unlock()

	s.metrics.RecordSave(true, s.clock.Now().Sub(start))
	s.metrics.RecordEvictions(evicted)
	s.logger.Debug("workspace saved", "client_id", id, "ts", ts, "seq", seq, "snapshots", len(snaps), "evicted", evicted)
	if event == model.EventWorkspaceSave {
		s.notifier.WorkspaceSaved(string(id), ts)
	}
	return ts, nil
}

// set writes key. When the backend is full it trims every journal down
// to its newest record and tries once more, so the journal never keeps a
// document from being stored.
func (s *Store) set(ctx context.Context, key, value string) error {
	err := s.kv.Set(ctx, key, value)
	if !errors.Is(err, backend.ErrQuotaExceeded) {
		return err
	}
	dropped, shrinkErr := s.journal.Shrink(ctx, 1)
	if shrinkErr != nil {
		s.logger.Warn("journal shrink failed", "key", key, "error", shrinkErr)
	}
	if dropped == 0 {
		return err
	}
	s.logger.Warn("storage quota reached, journals trimmed", "key", key, "dropped_records", dropped)
	return s.kv.Set(ctx, key, value)
}

// appendJournal records an operation. A failed append does not undo the
// operation but is kept as the last error.
func (s *Store) appendJournal(ctx context.Context, id model.ClientID, event model.JournalEventType, ts int64, details map[string]any) {
	if _, err := s.journal.Append(ctx, id, event, ts, details); err != nil {
		s.recordError(err)
		s.logger.Warn("journal append failed", "client_id", id, "event", event, "error", err)
	}
}

func (s *Store) rollbackData(ctx context.Context, key, prev string, hadPrev bool) {
	var err error
	if hadPrev {
		err = s.kv.Set(ctx, key, prev)
	} else {
		err = s.kv.Remove(ctx, key)
	}
	if err != nil {
		s.logger.Error("rollback of workspace data failed", "key", key, "error", err)
	}
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.lastErrAt = s.clock.Now()
	s.mu.Unlock()
}

// LastError returns the most recent save failure, or nil. It is not
// cleared by later successful saves.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load returns the persisted, normalized document for id, or nil when the
// client has no document.
func (s *Store) Load(ctx context.Context, id model.ClientID) (*model.Workspace, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *Store) load(ctx context.Context, id model.ClientID) (*model.Workspace, error) {
	key := keyspace.Data(id)
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var doc model.Workspace
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errclass.ErrDataCorrupt.WithMessagef("%s: %v", key, err)
	}
	return model.Normalize(&doc), nil
}

// Snapshots returns the client's snapshot history, oldest first. A client
// with no history yields an empty slice.
func (s *Store) Snapshots(ctx context.Context, id model.ClientID) ([]model.Snapshot, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return nil, err
	}
	return s.readSnapshots(ctx, id)
}

func (s *Store) readSnapshots(ctx context.Context, id model.ClientID) ([]model.Snapshot, error) {
	key := keyspace.Snapshots(id)
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	snaps := make([]model.Snapshot, 0)
	if !ok || raw == "" {
		return snaps, nil
	}
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		return nil, errclass.ErrDataCorrupt.WithMessagef("%s: %v", key, err)
	}
	for i := range snaps {
		snaps[i].Data = *model.Normalize(&snaps[i].Data)
	}
	return snaps, nil
}

// RestoreSnapshot makes the snapshot taken at ts the current document.
// The current audit log is kept first, followed by the snapshot's entries.
// The result is saved as a new snapshot and returned. An unknown ts fails
// with E_NOT_FOUND.
func (s *Store) RestoreSnapshot(ctx context.Context, id model.ClientID, ts int64) (*model.Workspace, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return nil, err
	}

	var restored *model.Workspace
	var newTS int64
	err = s.do(ctx, func() error {
		bg := context.Background()
		snaps, err := s.readSnapshots(bg, id)
		if err != nil {
			return err
		}
		var snap *model.Snapshot
		for i := range snaps {
			if snaps[i].TS == ts {
				snap = &snaps[i]
				break
			}
		}
		if snap == nil {
			return errclass.ErrNotFound.WithMessagef("client %s has no snapshot with ts %d", id, ts)
		}

		current, err := s.load(bg, id)
		if err != nil {
			return err
		}
		doc, err := jsonutil.Clone(snap.Data)
		if err != nil {
			return fmt.Errorf("copy snapshot: %w", err)
		}
		doc.ID = id
		doc.MeasurementContract.AuditLog = audit.Merge(currentAuditLog(current), snap.Data.MeasurementContract.AuditLog)
		restored = model.Normalize(&doc)

		newTS, err = s.persist(restored, model.EventSnapshotRestore, map[string]any{"source_ts": ts})
		return err
	})
	s.metrics.RecordRestore(err == nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot restored", "client_id", id, "source_ts", ts, "ts", newTS)
	s.notifier.SnapshotRestored(string(id), ts)
	return restored, nil
}

func currentAuditLog(doc *model.Workspace) []model.AuditLogEntry {
	if doc == nil {
		return nil
	}
	return doc.MeasurementContract.AuditLog
}

// Export serializes the client's current document as a checksummed bundle.
// A client with no document fails with E_NOT_FOUND.
func (s *Store) Export(ctx context.Context, id model.ClientID) (string, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return "", err
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", errclass.ErrNotFound.WithMessagef("client %s has no workspace", id)
	}

	checksum, err := integrity.ComputePayloadChecksum(doc)
	if err != nil {
		return "", err
	}
	bundle := model.ExportBundle{
		Type:          model.ExportMarker,
		Version:       s.version,
		ExportedAt:    s.clock.Now().UTC(),
		ClientID:      id,
		SchemaVersion: model.SchemaVersion,
		Checksum:      checksum,
		Payload:       *doc,
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}

	s.journalAsync(id, model.EventWorkspaceExport, map[string]any{"checksum": string(checksum)})
	s.metrics.RecordExport()
	s.notifier.WorkspaceExported(string(id), string(checksum))
	return string(data), nil
}

// Import verifies a serialized bundle and applies its payload to client id.
// The bundle's checksum is recomputed over the payload as received; a
// mismatch fails with E_CHECKSUM_MISMATCH and nothing is written. On
// success every field comes from the payload except the audit log, which
// is the current log followed by the payload's.
func (s *Store) Import(ctx context.Context, id model.ClientID, data []byte) (*model.Workspace, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return nil, err
	}

	bundle, err := ParseBundle(data)
	if err == nil {
		err = integrity.VerifyRawChecksum(bundle.Payload, bundle.Checksum)
	}
	var incoming model.Workspace
	if err == nil {
		if uerr := json.Unmarshal(bundle.Payload, &incoming); uerr != nil {
			err = errclass.ErrValidation.WithMessagef("bundle payload is not a workspace: %v", uerr)
		}
	}
	if err != nil {
		s.rejectImport(id, err)
		return nil, err
	}

	var imported *model.Workspace
	err = s.do(ctx, func() error {
		current, err := s.load(context.Background(), id)
		if err != nil {
			return err
		}
		incoming.ID = id
		incoming.MeasurementContract.AuditLog = audit.Merge(currentAuditLog(current), incoming.MeasurementContract.AuditLog)
		imported = model.Normalize(&incoming)

		_, err = s.persist(imported, model.EventWorkspaceImport, map[string]any{
			"checksum":       string(bundle.Checksum),
			"source_client":  string(bundle.ClientID),
			"schema_version": bundle.SchemaVersion,
		})
		return err
	})
	s.metrics.RecordImport(err == nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("workspace imported", "client_id", id, "source_client", bundle.ClientID, "checksum", bundle.Checksum)
	s.notifier.WorkspaceImported(string(id), string(bundle.Checksum))
	return imported, nil
}

func (s *Store) rejectImport(id model.ClientID, reason error) {
	s.logger.Warn("import rejected", "client_id", id, "code", errclass.Code(reason), "error", reason)
	s.metrics.RecordImport(false)
	s.journalAsync(id, model.EventImportRejected, map[string]any{
		"code":   errclass.Code(reason),
		"reason": reason.Error(),
	})
	s.notifier.ImportRejected(string(id), reason)
}

// journalAsync appends a journal record on the queue worker without
// waiting, keeping every backend write on the worker.
func (s *Store) journalAsync(id model.ClientID, event model.JournalEventType, details map[string]any) {
	_, err := s.queue.Enqueue(func() error {
		s.appendJournal(context.Background(), id, event, 0, details)
		return nil
	})
	if err != nil {
		s.logger.Warn("journal append not queued", "client_id", id, "event", event, "error", err)
	}
}

// Remove deletes the client's document, snapshots and directory entry.
// The journal is kept and records the removal. An unknown client fails
// with E_NOT_FOUND.
func (s *Store) Remove(ctx context.Context, id model.ClientID) error {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return err
	}
	err = s.do(ctx, func() error {
		bg := context.Background()
		if _, ok, err := s.kv.Get(bg, keyspace.Data(id)); err != nil {
			return err
		} else if !ok {
			return errclass.ErrNotFound.WithMessagef("client %s has no workspace", id)
		}
		for _, key := range []string{keyspace.Data(id), keyspace.Snapshots(id)} {
			if err := s.kv.Remove(bg, key); err != nil {
				return errclass.ErrStorageWrite.Wrap(err, "remove "+key)
			}
		}
		dir, err := s.readDirectory(bg)
		if err != nil {
			return err
		}
		delete(dir, id)
		if err := s.writeDirectory(bg, dir); err != nil {
			return err
		}
		s.appendJournal(bg, id, model.EventClientRemove, 0, nil)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("client removed", "client_id", id)
	s.notifier.ClientRemoved(string(id))
	return nil
}

// PurgeJournal deletes the client's journal. A client that still has a
// document must be removed first.
func (s *Store) PurgeJournal(ctx context.Context, id model.ClientID) error {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return err
	}
	return s.do(ctx, func() error {
		bg := context.Background()
		if _, ok, err := s.kv.Get(bg, keyspace.Data(id)); err != nil {
			return err
		} else if ok {
			return errclass.ErrValidation.WithMessagef("client %s still has a workspace; remove it first", id)
		}
		if err := s.journal.Remove(bg, id); err != nil {
			return errclass.ErrStorageWrite.Wrap(err, "remove "+keyspace.Journal(id))
		}
		s.logger.Info("journal purged", "client_id", id)
		return nil
	})
}

// Journal returns the client's operation journal, oldest first.
func (s *Store) Journal(ctx context.Context, id model.ClientID) ([]model.JournalRecord, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return nil, err
	}
	return s.journal.Records(ctx, id)
}

// VerifyJournal checks the client's journal hash chain and returns the
// number of records verified.
func (s *Store) VerifyJournal(ctx context.Context, id model.ClientID) (int, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return 0, err
	}
	return s.journal.VerifyChain(ctx, id)
}

// Flush waits until every save queued before the call has completed.
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

// Close drains the save queue and stops the worker. The backend is left
// open for its owner to close.
func (s *Store) Close() error {
	return s.queue.Close()
}
