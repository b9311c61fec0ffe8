package bundlestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/fsutil"
	"github.com/jvs-project/mops/pkg/pathutil"
)

// Dir writes bundles as files in a local directory.
type Dir struct {
	dir string
}

// NewDir returns a sink rooted at dir. The directory is created on first Put.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir}
}

func (d *Dir) Name() string { return "dir:" + d.dir }

func (d *Dir) Put(_ context.Context, name string, data []byte) (string, error) {
	path, err := pathutil.SafeJoin(d.dir, name)
	if err != nil {
		return "", err
	}
	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return "", errclass.ErrStorageWrite.Wrap(err, "write bundle "+name)
	}
	return path, nil
}

func (d *Dir) Get(_ context.Context, name string) ([]byte, error) {
	path, err := pathutil.SafeJoin(d.dir, name)
	if err != nil {
		return nil, err
	}
	data, ok, err := fsutil.ReadFileIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", name, err)
	}
	if !ok {
		return nil, errclass.ErrNotFound.WithMessagef("bundle %s not found in %s", name, d.dir)
	}
	return data, nil
}

func (d *Dir) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
