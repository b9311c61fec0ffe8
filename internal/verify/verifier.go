// Package verify checks stored workspaces for corruption and tampering.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jvs-project/mops/internal/integrity"
	"github.com/jvs-project/mops/internal/keyspace"
	"github.com/jvs-project/mops/internal/workspace"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/pathutil"
)

// Severity levels, from least to most serious.
const (
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Result contains verification results for a single client.
type Result struct {
	ClientID       model.ClientID `json:"client_id"`
	DataValid      bool           `json:"data_valid"`
	SnapshotCount  int            `json:"snapshot_count"`
	HistoryValid   bool           `json:"history_valid"`
	HeadMatches    bool           `json:"head_matches"`
	JournalRecords int            `json:"journal_records"`
	JournalValid   bool           `json:"journal_valid"`
	TamperDetected bool           `json:"tamper_detected"`
	Severity       string         `json:"severity,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// OK reports whether no problem was found.
func (r *Result) OK() bool { return r.Severity == "" }

func (r *Result) fail(severity, msg string) {
	if rank(severity) > rank(r.Severity) {
		r.Severity = severity
	}
	if r.Error == "" {
		r.Error = msg
	} else {
		r.Error += "; " + msg
	}
}

func rank(severity string) int {
	switch severity {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Verifier performs integrity verification on client workspaces.
type Verifier struct {
	store *workspace.Store
}

// NewVerifier creates a new verifier.
func NewVerifier(store *workspace.Store) *Verifier {
	return &Verifier{store: store}
}

// VerifyClient checks one client's document, snapshot history and journal.
// Problems are reported in the Result; the error is reserved for failures
// to read the backend at all.
func (v *Verifier) VerifyClient(ctx context.Context, id model.ClientID) (*Result, error) {
	result := &Result{ClientID: id}
	if _, err := pathutil.ValidateClientID(string(id)); err != nil {
		result.TamperDetected = true
		result.fail(SeverityCritical, err.Error())
		return result, nil
	}

	doc, err := v.store.Load(ctx, id)
	switch {
	case errors.Is(err, errclass.ErrDataCorrupt):
		result.TamperDetected = true
		result.fail(SeverityCritical, err.Error())
	case err != nil:
		return nil, err
	case doc == nil:
		result.fail(SeverityError, "workspace document missing")
	default:
		result.DataValid = true
	}

	snaps, err := v.store.Snapshots(ctx, id)
	switch {
	case errors.Is(err, errclass.ErrDataCorrupt):
		result.TamperDetected = true
		result.fail(SeverityCritical, err.Error())
	case err != nil:
		return nil, err
	default:
		result.SnapshotCount = len(snaps)
		result.HistoryValid = v.checkHistory(result, snaps)
		if doc != nil && len(snaps) > 0 {
			result.HeadMatches = headMatches(result, doc, &snaps[len(snaps)-1])
		}
	}

	n, err := v.store.VerifyJournal(ctx, id)
	switch {
	case errors.Is(err, errclass.ErrAuditChainBroken), errors.Is(err, errclass.ErrDataCorrupt):
		result.TamperDetected = true
		result.fail(SeverityCritical, err.Error())
	case err != nil:
		return nil, err
	default:
		result.JournalRecords = n
		result.JournalValid = true
	}

	return result, nil
}

func (v *Verifier) checkHistory(result *Result, snaps []model.Snapshot) bool {
	valid := true
	for i := 1; i < len(snaps); i++ {
		if snaps[i].TS <= snaps[i-1].TS {
			result.TamperDetected = true
			result.fail(SeverityCritical, fmt.Sprintf("snapshot ts %d does not follow %d", snaps[i].TS, snaps[i-1].TS))
			valid = false
			break
		}
	}
	if limit := v.store.MaxSnapshots(); len(snaps) > limit {
		result.fail(SeverityWarning, fmt.Sprintf("%d snapshots exceed retention of %d", len(snaps), limit))
	}
	return valid
}

func headMatches(result *Result, doc *model.Workspace, newest *model.Snapshot) bool {
	current, err := integrity.ComputePayloadChecksum(doc)
	if err != nil {
		result.fail(SeverityError, fmt.Sprintf("compute checksum: %v", err))
		return false
	}
	head, err := integrity.ComputePayloadChecksum(&newest.Data)
	if err != nil {
		result.fail(SeverityError, fmt.Sprintf("compute checksum: %v", err))
		return false
	}
	if current != head {
		result.fail(SeverityWarning, fmt.Sprintf("current document differs from newest snapshot %d", newest.TS))
		return false
	}
	return true
}

// VerifyAll verifies every client that has a document or a directory entry.
func (v *Verifier) VerifyAll(ctx context.Context) ([]*Result, error) {
	ids := map[model.ClientID]struct{}{}

	keys, err := v.store.Backend().Keys(ctx, keyspace.Data(""))
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	for _, key := range keys {
		if id, ok := keyspace.ClientOf(key); ok {
			ids[id] = struct{}{}
		}
	}
	clients, err := v.store.Clients(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		ids[c.ID] = struct{}{}
	}

	sorted := make([]model.ClientID, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var results []*Result
	for _, id := range sorted {
		result, err := v.VerifyClient(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
