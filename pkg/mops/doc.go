// Package mops provides the library API for the client workspace store.
//
// A Client opens a data directory (one containing .mops/), reads its
// config.yaml with MOPS_* environment overrides, connects the configured
// backend and runs a workspace store on it.
//
// # Concurrency Safety
//
//   - All writes of one Client go through a single FIFO save queue, so
//     concurrent Save, RestoreSnapshot, Import and Remove calls on the same
//     Client never interleave.
//
//   - Two Clients must NOT write to the SAME backend concurrently. The
//     save queue serializes within a process only.
//
//   - Reads (Load, Snapshots, Journal) do not wait for the queue. Call
//     Flush first to observe every save issued so far.
//
// # Usage
//
//	client, err := mops.OpenOrInit(dataDir, mops.Options{})
//	defer client.Close()
//
//	ts, err := client.Save(ctx, &model.Workspace{ID: "acme"})
//	loc, err := client.ExportTo(ctx, "acme")
//	doc, err := client.ImportFrom(ctx, "acme-copy", filepath.Base(loc))
package mops
