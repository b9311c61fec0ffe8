// Package diff compares workspace documents field by field.
package diff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/pathutil"
)

// Current selects the client's current document instead of a snapshot.
const Current int64 = 0

// ChangeType represents the type of field change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change is a single leaf value that differs between two documents.
// Old and New hold the compact JSON of the value.
type Change struct {
	Path string     `json:"path"`
	Type ChangeType `json:"type"`
	Old  string     `json:"old,omitempty"`
	New  string     `json:"new,omitempty"`
}

// Result represents the result of comparing two documents.
type Result struct {
	ClientID      model.ClientID `json:"client_id,omitempty"`
	FromTS        int64          `json:"from_ts"`
	ToTS          int64          `json:"to_ts"`
	Added         []*Change      `json:"added"`
	Removed       []*Change      `json:"removed"`
	Modified      []*Change      `json:"modified"`
	TotalAdded    int            `json:"total_added"`
	TotalRemoved  int            `json:"total_removed"`
	TotalModified int            `json:"total_modified"`
}

// Empty reports whether the documents were identical.
func (r *Result) Empty() bool {
	return r.TotalAdded == 0 && r.TotalRemoved == 0 && r.TotalModified == 0
}

// Source reads documents and their snapshot history.
type Source interface {
	Load(ctx context.Context, id model.ClientID) (*model.Workspace, error)
	Snapshots(ctx context.Context, id model.ClientID) ([]model.Snapshot, error)
}

// Differ computes differences between a client's snapshots.
type Differ struct {
	src Source
}

// NewDiffer creates a new Differ.
func NewDiffer(src Source) *Differ {
	return &Differ{src: src}
}

// Diff compares the snapshot taken at fromTS with the one taken at toTS.
// Either timestamp may be Current.
func (d *Differ) Diff(ctx context.Context, id model.ClientID, fromTS, toTS int64) (*Result, error) {
	id, err := pathutil.ValidateClientID(string(id))
	if err != nil {
		return nil, err
	}

	var snaps []model.Snapshot
	if fromTS != Current || toTS != Current {
		if snaps, err = d.src.Snapshots(ctx, id); err != nil {
			return nil, err
		}
	}
	resolve := func(ts int64) (*model.Workspace, error) {
		if ts == Current {
			doc, err := d.src.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			if doc == nil {
				return nil, errclass.ErrNotFound.WithMessagef("client %s has no workspace", id)
			}
			return doc, nil
		}
		for i := range snaps {
			if snaps[i].TS == ts {
				return &snaps[i].Data, nil
			}
		}
		return nil, errclass.ErrNotFound.WithMessagef("no snapshot %d for client %s", ts, id)
	}

	from, err := resolve(fromTS)
	if err != nil {
		return nil, err
	}
	to, err := resolve(toTS)
	if err != nil {
		return nil, err
	}

	result, err := Compare(from, to)
	if err != nil {
		return nil, err
	}
	result.ClientID = id
	result.FromTS = fromTS
	result.ToTS = toTS
	return result, nil
}

// Compare diffs two documents. A nil from reports every field of to as added.
func Compare(from, to *model.Workspace) (*Result, error) {
	fromTree, err := flatten(from)
	if err != nil {
		return nil, fmt.Errorf("flatten from: %w", err)
	}
	toTree, err := flatten(to)
	if err != nil {
		return nil, fmt.Errorf("flatten to: %w", err)
	}

	result := &Result{}
	for path, newVal := range toTree {
		oldVal, exists := fromTree[path]
		if !exists {
			result.Added = append(result.Added, &Change{Path: path, Type: ChangeAdded, New: newVal})
		} else if oldVal != newVal {
			result.Modified = append(result.Modified, &Change{Path: path, Type: ChangeModified, Old: oldVal, New: newVal})
		}
	}
	for path, oldVal := range fromTree {
		if _, exists := toTree[path]; !exists {
			result.Removed = append(result.Removed, &Change{Path: path, Type: ChangeRemoved, Old: oldVal})
		}
	}

	sortChanges(result.Added)
	sortChanges(result.Removed)
	sortChanges(result.Modified)

	result.TotalAdded = len(result.Added)
	result.TotalRemoved = len(result.Removed)
	result.TotalModified = len(result.Modified)
	return result, nil
}

// flatten maps every non-empty leaf of doc to its compact JSON value.
// Empty objects, empty arrays and nulls produce no entries.
func flatten(doc *model.Workspace) (map[string]string, error) {
	tree := make(map[string]string)
	if doc == nil {
		return tree, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return tree, walk("", v, tree)
}

func walk(path string, v any, tree map[string]string) error {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range val {
			p := k
			if path != "" {
				p = path + "." + k
			}
			if err := walk(p, child, tree); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, child := range val {
			if err := walk(path+"["+strconv.Itoa(i)+"]", child, tree); err != nil {
				return err
			}
		}
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		tree[path] = string(b)
		return nil
	}
}

// sortChanges sorts changes by path.
func sortChanges(changes []*Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
}

func label(ts int64) string {
	if ts == Current {
		return "current"
	}
	return strconv.FormatInt(ts, 10)
}

// FormatHuman returns a human-readable string representation of the diff.
func (r *Result) FormatHuman() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Diff %s %s -> %s\n", r.ClientID, label(r.FromTS), label(r.ToTS)))
	if r.FromTS != Current {
		sb.WriteString(fmt.Sprintf("From: %s\n", time.UnixMilli(r.FromTS).UTC().Format("2006-01-02 15:04:05")))
	}
	if r.ToTS != Current {
		sb.WriteString(fmt.Sprintf("To:   %s\n", time.UnixMilli(r.ToTS).UTC().Format("2006-01-02 15:04:05")))
	}
	sb.WriteString("\n")

	if r.TotalAdded > 0 {
		sb.WriteString(fmt.Sprintf("Added (%d):\n", r.TotalAdded))
		for _, c := range r.Added {
			sb.WriteString(fmt.Sprintf("  + %s = %s\n", c.Path, c.New))
		}
		sb.WriteString("\n")
	}

	if r.TotalRemoved > 0 {
		sb.WriteString(fmt.Sprintf("Removed (%d):\n", r.TotalRemoved))
		for _, c := range r.Removed {
			sb.WriteString(fmt.Sprintf("  - %s\n", c.Path))
		}
		sb.WriteString("\n")
	}

	if r.TotalModified > 0 {
		sb.WriteString(fmt.Sprintf("Modified (%d):\n", r.TotalModified))
		for _, c := range r.Modified {
			sb.WriteString(fmt.Sprintf("  ~ %s (%s -> %s)\n", c.Path, c.Old, c.New))
		}
		sb.WriteString("\n")
	}

	if r.Empty() {
		sb.WriteString("No changes.\n")
	}

	return sb.String()
}
