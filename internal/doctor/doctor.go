// Package doctor runs health checks over a mops data directory.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvs-project/mops/internal/repo"
	"github.com/jvs-project/mops/internal/verify"
	"github.com/jvs-project/mops/internal/workspace"
	"github.com/jvs-project/mops/pkg/config"
)

const tmpPrefix = ".mops-tmp-"

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "critical" || f.Severity == "error" {
		r.Healthy = false
	}
}

// Doctor performs data directory health checks.
type Doctor struct {
	root  string
	store *workspace.Store
}

// NewDoctor creates a new doctor. store is only needed for strict checks.
func NewDoctor(root string, store *workspace.Store) *Doctor {
	return &Doctor{root: root, store: store}
}

func (d *Doctor) stateDir() string {
	return filepath.Join(d.root, config.Dir)
}

// Check runs all diagnostic checks. strict also verifies every stored
// client.
func (d *Doctor) Check(ctx context.Context, strict bool) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	d.checkFormatVersion(result)
	cfg := d.checkConfig(result)
	d.checkStoreID(result)
	if cfg != nil {
		d.checkLayout(cfg, result)
	}
	d.checkOrphanTmp(result)

	if strict {
		if d.store == nil {
			return nil, fmt.Errorf("strict check needs an open store")
		}
		if err := d.checkIntegrity(ctx, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *Doctor) checkFormatVersion(result *Result) {
	versionPath := filepath.Join(d.stateDir(), repo.FormatVersionFile)
	data, err := os.ReadFile(versionPath)
	if err != nil {
		result.add(Finding{
			Category:    "format",
			Description: "format_version file missing or unreadable",
			Severity:    "critical",
			Path:        versionPath,
		})
		return
	}

	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		result.add(Finding{
			Category:    "format",
			Description: fmt.Sprintf("format_version is not a number: %q", strings.TrimSpace(string(data))),
			Severity:    "critical",
			Path:        versionPath,
		})
		return
	}
	if version > repo.FormatVersion {
		result.add(Finding{
			Category:    "format",
			Description: fmt.Sprintf("format version %d > supported %d", version, repo.FormatVersion),
			Severity:    "critical",
		})
	}
}

func (d *Doctor) checkConfig(result *Result) *config.Config {
	cfg, err := config.Load(d.root)
	if err != nil {
		result.add(Finding{
			Category:    "config",
			Description: fmt.Sprintf("cannot load config: %v", err),
			Severity:    "error",
			Path:        config.Path(d.root),
		})
		return nil
	}
	return cfg
}

func (d *Doctor) checkStoreID(result *Result) {
	path := filepath.Join(d.stateDir(), repo.StoreIDFile)
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		result.add(Finding{
			Category:    "store_id",
			Description: "store_id file missing or empty",
			Severity:    "warning",
			Path:        path,
		})
	}
}

func (d *Doctor) checkLayout(cfg *config.Config, result *Result) {
	if cfg.Backend.Type != "file" {
		return
	}
	kvDir := filepath.Join(d.stateDir(), "kv")
	if info, err := os.Stat(kvDir); err != nil || !info.IsDir() {
		result.add(Finding{
			Category:    "layout",
			Description: "file backend directory is missing",
			Severity:    "error",
			Path:        kvDir,
		})
	}
}

func (d *Doctor) checkIntegrity(ctx context.Context, result *Result) error {
	results, err := verify.NewVerifier(d.store).VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("verify clients: %w", err)
	}
	for _, r := range results {
		if r.OK() {
			continue
		}
		severity := r.Severity
		if r.TamperDetected {
			severity = verify.SeverityCritical
		}
		result.add(Finding{
			Category:    "integrity",
			Description: fmt.Sprintf("client %s: %s", r.ClientID, r.Error),
			Severity:    severity,
		})
	}
	return nil
}

func (d *Doctor) orphanTmp() []string {
	var paths []string
	filepath.WalkDir(d.stateDir(), func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), tmpPrefix) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	for _, path := range d.orphanTmp() {
		result.add(Finding{
			Category:    "tmp",
			Description: fmt.Sprintf("orphan temp file: %s", filepath.Base(path)),
			Severity:    "info",
			Path:        path,
		})
	}
}

// Repair removes temp files left behind by interrupted writes and returns
// their paths.
func (d *Doctor) Repair() ([]string, error) {
	var removed []string
	for _, path := range d.orphanTmp() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
