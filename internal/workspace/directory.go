package workspace

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jvs-project/mops/internal/keyspace"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/model"
)

type directory map[model.ClientID]model.ClientRecord

func (s *Store) readDirectory(ctx context.Context) (directory, error) {
	raw, ok, err := s.kv.Get(ctx, keyspace.Directory)
	if err != nil {
		return nil, err
	}
	dir := directory{}
	if !ok || raw == "" {
		return dir, nil
	}
	if err := json.Unmarshal([]byte(raw), &dir); err != nil {
		return nil, errclass.ErrDataCorrupt.WithMessagef("client directory: %v", err)
	}
	return dir, nil
}

func (s *Store) writeDirectory(ctx context.Context, dir directory) error {
	data, err := json.Marshal(dir)
	if err != nil {
		return err
	}
	if err := s.set(ctx, keyspace.Directory, string(data)); err != nil {
		return errclass.ErrStorageWrite.Wrap(err, "write "+keyspace.Directory)
	}
	return nil
}

// touchDirectory records a save of doc. Runs on the queue worker.
func (s *Store) touchDirectory(ctx context.Context, doc *model.Workspace, snapshots int, now time.Time) error {
	dir, err := s.readDirectory(ctx)
	if err != nil {
		return err
	}
	rec := dir[doc.ID]
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.ID = doc.ID
	rec.ClientName = doc.ClientName
	rec.UpdatedAt = now
	rec.Snapshots = snapshots
	dir[doc.ID] = rec
	return s.writeDirectory(ctx, dir)
}

// Clients lists every client in the directory, sorted by ID.
func (s *Store) Clients(ctx context.Context) ([]model.ClientRecord, error) {
	dir, err := s.readDirectory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ClientRecord, 0, len(dir))
	for _, rec := range dir {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
