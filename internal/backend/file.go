package backend

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jvs-project/mops/pkg/fsutil"
)

const fileSuffix = ".kv"

// File stores each key in its own file under a directory. Writes are atomic:
// a reader sees either the old value or the new one.
type File struct {
	dir string
}

// NewFile creates a file backend rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create kv dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Name() Type { return TypeFile }

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+fileSuffix)
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	data, ok, err := fsutil.ReadFileIfExists(f.path(key))
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	if err := fsutil.AtomicWrite(f.path(key), []byte(value), 0644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	if err := fsutil.RemoveAndSync(f.path(key)); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (f *File) Keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list kv dir: %w", err)
	}
	keys := make([]string, 0)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *File) Close() error { return nil }
