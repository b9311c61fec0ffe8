// Package backend provides the key-value stores that hold workspace data.
// Backends support different durability strategies: in-process memory,
// one file per key, and a SQL table (sqlite, postgres or mysql).
package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Backend is a synchronous string key-value store.
type Backend interface {
	// Name returns the backend type identifier.
	Name() Type

	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys returns every key with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources held by the backend.
	Close() error
}

// Type identifies a backend implementation.
type Type string

const (
	TypeMemory   Type = "memory"
	TypeFile     Type = "file"
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
)

// ErrQuotaExceeded is returned by Set when a write would exceed the
// backend's configured capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Options selects and configures a backend.
type Options struct {
	Type Type
	// Dir is the state directory used by the file and default sqlite backends.
	Dir string
	// DSN is the data source name for SQL backends.
	DSN string
	// QuotaBytes caps the memory backend's total key+value size. Zero means no cap.
	QuotaBytes int
}

// New creates a backend based on opts.Type. An empty type selects the file
// backend.
func New(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Type {
	case TypeMemory:
		return NewMemory(opts.QuotaBytes), nil
	case TypeFile, "":
		if opts.Dir == "" {
			return nil, fmt.Errorf("file backend requires a directory")
		}
		return NewFile(filepath.Join(opts.Dir, "kv"))
	case TypeSQLite:
		dsn := opts.DSN
		if dsn == "" {
			if opts.Dir == "" {
				return nil, fmt.Errorf("sqlite backend requires a dsn or directory")
			}
			dsn = filepath.Join(opts.Dir, "mops.db")
		}
		return OpenSQL(ctx, TypeSQLite, dsn)
	case TypePostgres, TypeMySQL:
		if opts.DSN == "" {
			return nil, fmt.Errorf("%s backend requires a dsn", opts.Type)
		}
		return OpenSQL(ctx, opts.Type, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown backend type %q", opts.Type)
	}
}
