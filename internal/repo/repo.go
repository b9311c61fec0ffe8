// Package repo locates and initializes a mops data directory.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jvs-project/mops/pkg/config"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/fsutil"
)

const (
	FormatVersion     = 1
	FormatVersionFile = "format_version"
	StoreIDFile       = "store_id"
)

// Repo represents an initialized mops data directory.
type Repo struct {
	Root          string
	FormatVersion int
	StoreID       string
}

// StateDir returns the .mops directory.
func (r *Repo) StateDir() string {
	return filepath.Join(r.Root, config.Dir)
}

// KVDir returns the directory used by the file backend.
func (r *Repo) KVDir() string {
	return filepath.Join(r.Root, config.Dir, "kv")
}

// BundleDir returns the default directory for exported bundles.
func (r *Repo) BundleDir() string {
	return filepath.Join(r.Root, config.Dir, "bundles")
}

// Init creates a new data directory at path and writes cfg as its config.
// A nil cfg writes the defaults.
func Init(path string, cfg *config.Config) (*Repo, error) {
	stateDir := filepath.Join(path, config.Dir)
	if _, err := os.Stat(filepath.Join(stateDir, FormatVersionFile)); err == nil {
		return nil, errclass.ErrValidation.WithMessagef("%s is already initialized", path)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Repo{Root: path, FormatVersion: FormatVersion, StoreID: uuid.NewString()}
	for _, dir := range []string{stateDir, r.KVDir(), r.BundleDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(path, cfg); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	if err := fsutil.AtomicWrite(filepath.Join(stateDir, StoreIDFile), []byte(r.StoreID+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write store_id: %w", err)
	}
	// format_version goes last; its presence marks a complete init.
	if err := fsutil.AtomicWrite(filepath.Join(stateDir, FormatVersionFile), []byte(fmt.Sprintf("%d\n", FormatVersion)), 0644); err != nil {
		return nil, fmt.Errorf("write format_version: %w", err)
	}
	if err := fsutil.FsyncDir(path); err != nil {
		return nil, fmt.Errorf("fsync data dir: %w", err)
	}
	return r, nil
}

// Discover walks up from cwd to find the data dir (directory containing .mops/).
func Discover(cwd string) (*Repo, error) {
	path := cwd
	for {
		stateDir := filepath.Join(path, config.Dir)
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			version, err := readFormatVersion(stateDir)
			if err != nil {
				return nil, err
			}
			if version > FormatVersion {
				return nil, errclass.ErrFormatUnsupported.WithMessagef(
					"format version %d > supported %d", version, FormatVersion)
			}
			storeID, _ := readStoreID(stateDir)
			return &Repo{
				Root:          path,
				FormatVersion: version,
				StoreID:       storeID,
			}, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return nil, errclass.ErrNotFound.WithMessage("no mops data directory found (no .mops/ in parent directories)")
		}
		path = parent
	}
}

func readFormatVersion(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, FormatVersionFile))
	if err != nil {
		return 0, fmt.Errorf("read format_version: %w", err)
	}
	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		return 0, fmt.Errorf("parse format_version: %w", err)
	}
	return version, nil
}

func readStoreID(stateDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, StoreIDFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
