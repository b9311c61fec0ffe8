// Package bundlestore keeps exported workspace bundles outside the store,
// in a local directory or an S3-compatible bucket.
package bundlestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jvs-project/mops/pkg/model"
)

// Sink stores and retrieves serialized export bundles by name.
type Sink interface {
	// Name identifies the sink in logs and CLI output.
	Name() string
	// Put stores data under name and returns where it was written.
	Put(ctx context.Context, name string, data []byte) (string, error)
	// Get returns the bundle stored under name. A missing bundle fails
	// with E_NOT_FOUND.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns bundle names, sorted.
	List(ctx context.Context) ([]string, error)
}

// BundleName is the conventional name for an export of id taken at t.
func BundleName(id model.ClientID, t time.Time) string {
	return fmt.Sprintf("%s-%d.json", id, t.UnixMilli())
}
