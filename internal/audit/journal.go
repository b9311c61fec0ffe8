package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jvs-project/mops/internal/backend"
	"github.com/jvs-project/mops/internal/clock"
	"github.com/jvs-project/mops/internal/keyspace"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/jsonutil"
	"github.com/jvs-project/mops/pkg/model"
)

// DefaultMaxRecords is how many records a client's journal keeps when
// NewJournal is given no limit.
const DefaultMaxRecords = 50

// Journal appends operation records for a client as JSONL under the
// client's journal key. Each record carries the hash of the one before it.
//
// A journal keeps at most maxRecords records. Older records are dropped
// from the head and replaced by a checkpoint line holding the hash of the
// newest dropped record, so the chain still verifies from its first line.
type Journal struct {
	kv         backend.Backend
	clock      clock.Clock
	maxRecords int
	mu         sync.Mutex
}

// NewJournal creates a Journal stored in kv. maxRecords < 1 selects
// DefaultMaxRecords.
func NewJournal(kv backend.Backend, clk clock.Clock, maxRecords int) *Journal {
	if clk == nil {
		clk = clock.Real{}
	}
	if maxRecords < 1 {
		maxRecords = DefaultMaxRecords
	}
	return &Journal{kv: kv, clock: clk, maxRecords: maxRecords}
}

// MaxRecords returns the per-client retention bound.
func (j *Journal) MaxRecords() int { return j.maxRecords }

// Append adds a new record to the client's journal and returns it. When
// the backend is out of space, older records are dropped until the write
// fits or only the new record is left.
func (j *Journal) Append(ctx context.Context, id model.ClientID, eventType model.JournalEventType, snapshotTS int64, details map[string]any) (*model.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := keyspace.Journal(id)
	existing, _, err := j.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	cp, lines := splitLines(existing)

	record := &model.JournalRecord{
		RecordID:   uuid.NewString(),
		Timestamp:  j.clock.Now().UTC(),
		EventType:  eventType,
		ClientID:   id,
		SnapshotTS: snapshotTS,
		Details:    details,
		PrevHash:   lastRecordHash(cp, lines),
	}

	recordHash, err := computeRecordHash(record)
	if err != nil {
		return nil, fmt.Errorf("compute record hash: %w", err)
	}
	record.RecordHash = recordHash

	line, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal journal record: %w", err)
	}
	lines = append(lines, string(line))

	keep := j.maxRecords
	for {
		err := j.kv.Set(ctx, key, compose(cp, lines, keep))
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, backend.ErrQuotaExceeded) || keep <= 1 {
			return nil, errclass.ErrStorageWrite.Wrap(err, "write journal "+key)
		}
		keep = max(min(keep, len(lines))/2, 1)
	}
}

// Shrink trims every client journal to its newest keep records and
// returns how many records were dropped in total. It frees backend space
// for document writes.
func (j *Journal) Shrink(ctx context.Context, keep int) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if keep < 1 {
		keep = 1
	}
	keys, err := j.kv.Keys(ctx, keyspace.JournalPrefix)
	if err != nil {
		return 0, fmt.Errorf("list journals: %w", err)
	}
	dropped := 0
	for _, key := range keys {
		raw, _, err := j.kv.Get(ctx, key)
		if err != nil {
			return dropped, fmt.Errorf("read journal: %w", err)
		}
		cp, lines := splitLines(raw)
		if len(lines) <= keep {
			continue
		}
		if err := j.kv.Set(ctx, key, compose(cp, lines, keep)); err != nil {
			return dropped, errclass.ErrStorageWrite.Wrap(err, "write journal "+key)
		}
		dropped += len(lines) - keep
	}
	return dropped, nil
}

// Records returns every retained record in the client's journal, oldest
// first.
func (j *Journal) Records(ctx context.Context, id model.ClientID) ([]model.JournalRecord, error) {
	_, records, err := j.read(ctx, id)
	return records, err
}

// Checkpoint returns the client's trim checkpoint. It is zero for a
// journal that has never been trimmed.
func (j *Journal) Checkpoint(ctx context.Context, id model.ClientID) (model.JournalCheckpoint, error) {
	cp, _, err := j.read(ctx, id)
	return cp, err
}

// LastRecordHash returns the hash of the last record in the client's journal.
func (j *Journal) LastRecordHash(ctx context.Context, id model.ClientID) (model.HashValue, error) {
	raw, _, err := j.kv.Get(ctx, keyspace.Journal(id))
	if err != nil {
		return "", fmt.Errorf("read journal: %w", err)
	}
	return lastRecordHash(splitLines(raw)), nil
}

// VerifyChain checks every record's hash and its link to the previous
// record, starting from the checkpoint when the journal has been trimmed.
// It returns the number of records checked.
func (j *Journal) VerifyChain(ctx context.Context, id model.ClientID) (int, error) {
	cp, records, err := j.read(ctx, id)
	if err != nil {
		return 0, err
	}

	prev := cp.Hash
	for i := range records {
		r := &records[i]
		if r.PrevHash != prev {
			return i, errclass.ErrAuditChainBroken.WithMessagef("record %d (%s): prev_hash does not match previous record", i, r.RecordID)
		}
		want, err := computeRecordHash(r)
		if err != nil {
			return i, fmt.Errorf("compute record hash: %w", err)
		}
		if r.RecordHash != want {
			return i, errclass.ErrAuditChainBroken.WithMessagef("record %d (%s): record_hash does not match content", i, r.RecordID)
		}
		prev = r.RecordHash
	}
	return len(records), nil
}

// Remove deletes the client's journal.
func (j *Journal) Remove(ctx context.Context, id model.ClientID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.kv.Remove(ctx, keyspace.Journal(id))
}

func (j *Journal) read(ctx context.Context, id model.ClientID) (model.JournalCheckpoint, []model.JournalRecord, error) {
	raw, _, err := j.kv.Get(ctx, keyspace.Journal(id))
	if err != nil {
		return model.JournalCheckpoint{}, nil, fmt.Errorf("read journal: %w", err)
	}
	cp, lines := splitLines(raw)
	records := make([]model.JournalRecord, 0, len(lines))
	for i, text := range lines {
		var record model.JournalRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return cp, nil, errclass.ErrDataCorrupt.WithMessagef("journal record %d: %v", i+1, err)
		}
		records = append(records, record)
	}
	return cp, records, nil
}

// splitLines separates a stored journal into its checkpoint and its
// non-empty record lines.
func splitLines(raw string) (model.JournalCheckpoint, []string) {
	var cp model.JournalCheckpoint
	lines := make([]string, 0)
	for i, text := range strings.Split(raw, "\n") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(text, `{"checkpoint"`) {
			if err := json.Unmarshal([]byte(text), &cp); err == nil {
				continue
			}
		}
		lines = append(lines, text)
	}
	return cp, lines
}

// compose renders a journal holding at most keep of lines. Dropped lines
// advance the checkpoint to the hash of the newest one dropped.
func compose(cp model.JournalCheckpoint, lines []string, keep int) string {
	if over := len(lines) - keep; over > 0 {
		cp = model.JournalCheckpoint{
			Hash:    lastRecordHash(cp, lines[:over]),
			Trimmed: cp.Trimmed + over,
		}
		lines = lines[over:]
	}
	var sb strings.Builder
	if cp.Hash != "" {
		head, _ := json.Marshal(cp)
		sb.Write(head)
		sb.WriteByte('\n')
	}
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// lastRecordHash returns the hash of the newest decodable record line,
// falling back to the checkpoint.
func lastRecordHash(cp model.JournalCheckpoint, lines []string) model.HashValue {
	for i := len(lines) - 1; i >= 0; i-- {
		var record model.JournalRecord
		if err := json.Unmarshal([]byte(lines[i]), &record); err != nil {
			continue // skip malformed lines
		}
		return record.RecordHash
	}
	return cp.Hash
}

func computeRecordHash(record *model.JournalRecord) (model.HashValue, error) {
	hashRecord := *record
	hashRecord.RecordHash = ""

	data, err := jsonutil.CanonicalMarshal(&hashRecord)
	if err != nil {
		return "", fmt.Errorf("canonical marshal: %w", err)
	}

	hash := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(hash[:])), nil
}
