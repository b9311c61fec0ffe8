package mops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jvs-project/mops/internal/backend"
	"github.com/jvs-project/mops/internal/bundlestore"
	"github.com/jvs-project/mops/internal/diff"
	"github.com/jvs-project/mops/internal/doctor"
	"github.com/jvs-project/mops/internal/repo"
	"github.com/jvs-project/mops/internal/verify"
	"github.com/jvs-project/mops/internal/workspace"
	"github.com/jvs-project/mops/pkg/config"
	"github.com/jvs-project/mops/pkg/logging"
	"github.com/jvs-project/mops/pkg/metrics"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/webhook"
)

type (
	// Status is a point-in-time view of the save pipeline.
	Status = workspace.Status
	// VerifyResult reports the integrity of one client.
	VerifyResult = verify.Result
	// DiffResult lists the fields that differ between two documents.
	DiffResult = diff.Result
	// DoctorResult lists the health findings for a data directory.
	DoctorResult = doctor.Result
)

// CurrentDocument selects a client's current document in Diff.
const CurrentDocument = diff.Current

// Options configures Open. Zero values select defaults.
type Options struct {
	// Logger overrides the logger built from the logging config.
	Logger *slog.Logger
	// Metrics overrides the process-wide registry.
	Metrics *metrics.Registry
}

// InitOptions configures data directory initialization.
type InitOptions struct {
	Options
	// Config is written as the initial config.yaml. Nil writes defaults.
	Config *config.Config
}

// Client provides workspace store operations on a data directory.
type Client struct {
	repo    *repo.Repo
	cfg     *config.Config
	logger  *slog.Logger
	kv      backend.Backend
	store   *workspace.Store
	hooks   *webhook.Client
	metrics *metrics.Registry

	sinkOnce sync.Once
	sink     bundlestore.Sink
	sinkErr  error
}

// Init initializes a new data directory at path and opens it.
func Init(path string, opts InitOptions) (*Client, error) {
	if _, err := repo.Init(path, opts.Config); err != nil {
		return nil, fmt.Errorf("mops init: %w", err)
	}
	return Open(path, opts.Options)
}

// Open opens the data directory at or above path.
func Open(path string, opts Options) (*Client, error) {
	r, err := repo.Discover(path)
	if err != nil {
		return nil, fmt.Errorf("mops open: %w", err)
	}
	cfg, err := config.Load(r.Root)
	if err != nil {
		return nil, fmt.Errorf("mops open: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(os.Stderr, logging.Options{
			Level:  logging.Level(cfg.Logging.Level),
			Format: logging.Format(cfg.Logging.Format),
		})
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.Default()
	}

	kv, err := backend.New(context.Background(), backend.Options{
		Type:       backend.Type(cfg.Backend.Type),
		Dir:        r.StateDir(),
		DSN:        cfg.Backend.DSN,
		QuotaBytes: cfg.Backend.QuotaBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("mops open: %w", err)
	}

	hooks := webhook.NewClient(&cfg.Webhooks, logger)
	store := workspace.New(kv, workspace.Options{
		MaxSnapshots:      cfg.MaxSnapshots(),
		MaxJournalRecords: cfg.History.JournalRecords,
		QueueSize:         cfg.Queue.Size,
		Logger:            logger,
		Metrics:           reg,
		Notifier:          hooks,
	})
	logger.Debug("store opened", "root", r.Root, "backend", kv.Name(), "max_snapshots", store.MaxSnapshots())

	return &Client{
		repo:    r,
		cfg:     cfg,
		logger:  logger,
		kv:      kv,
		store:   store,
		hooks:   hooks,
		metrics: reg,
	}, nil
}

// OpenOrInit opens an existing data directory, or initializes one at path.
func OpenOrInit(path string, opts InitOptions) (*Client, error) {
	if info, err := os.Stat(filepath.Join(path, config.Dir)); err == nil && info.IsDir() {
		return Open(path, opts.Options)
	}
	return Init(path, opts)
}

// Root returns the data directory.
func (c *Client) Root() string { return c.repo.Root }

// StoreID returns the identifier written at init.
func (c *Client) StoreID() string { return c.repo.StoreID }

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config { return c.cfg }

// Metrics returns the registry the store records to.
func (c *Client) Metrics() *metrics.Registry { return c.metrics }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Save persists doc and waits for it. See workspace.Store.Save.
func (c *Client) Save(ctx context.Context, doc *model.Workspace) (int64, error) {
	return c.store.Save(ctx, doc)
}

// SaveAsync queues doc for saving without waiting.
func (c *Client) SaveAsync(doc *model.Workspace) (<-chan error, error) {
	return c.store.SaveAsync(doc)
}

// Load returns the current document for id, or nil if there is none.
func (c *Client) Load(ctx context.Context, id model.ClientID) (*model.Workspace, error) {
	return c.store.Load(ctx, id)
}

// Snapshots returns id's snapshot history, oldest first.
func (c *Client) Snapshots(ctx context.Context, id model.ClientID) ([]model.Snapshot, error) {
	return c.store.Snapshots(ctx, id)
}

// RestoreSnapshot makes the snapshot taken at ts current.
func (c *Client) RestoreSnapshot(ctx context.Context, id model.ClientID, ts int64) (*model.Workspace, error) {
	return c.store.RestoreSnapshot(ctx, id, ts)
}

// Export returns id's current document as a serialized bundle.
func (c *Client) Export(ctx context.Context, id model.ClientID) (string, error) {
	return c.store.Export(ctx, id)
}

// Import applies a serialized bundle to id.
func (c *Client) Import(ctx context.Context, id model.ClientID, data []byte) (*model.Workspace, error) {
	return c.store.Import(ctx, id, data)
}

// Bundles returns the configured bundle sink: the MinIO bucket when one is
// configured, otherwise bundles.dir or .mops/bundles.
func (c *Client) Bundles(ctx context.Context) (bundlestore.Sink, error) {
	c.sinkOnce.Do(func() {
		if c.cfg.Bundles.MinIO.Enabled() {
			c.sink, c.sinkErr = bundlestore.NewMinIO(ctx, c.cfg.Bundles.MinIO)
			return
		}
		dir := c.cfg.Bundles.Dir
		if dir == "" {
			dir = c.repo.BundleDir()
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.repo.Root, dir)
		}
		c.sink = bundlestore.NewDir(dir)
	})
	return c.sink, c.sinkErr
}

// ExportTo exports id and stores the bundle in the bundle sink. It returns
// where the bundle was written.
func (c *Client) ExportTo(ctx context.Context, id model.ClientID) (string, error) {
	sink, err := c.Bundles(ctx)
	if err != nil {
		return "", err
	}
	data, err := c.store.Export(ctx, id)
	if err != nil {
		return "", err
	}
	loc, err := sink.Put(ctx, bundlestore.BundleName(id, time.Now()), []byte(data))
	if err != nil {
		return "", err
	}
	c.logger.Info("bundle written", "client_id", id, "sink", sink.Name(), "location", loc)
	return loc, nil
}

// ImportFrom reads the named bundle from the bundle sink and imports it into id.
func (c *Client) ImportFrom(ctx context.Context, id model.ClientID, name string) (*model.Workspace, error) {
	sink, err := c.Bundles(ctx)
	if err != nil {
		return nil, err
	}
	data, err := sink.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.store.Import(ctx, id, data)
}

// Remove deletes id's document and history. Its journal is kept.
func (c *Client) Remove(ctx context.Context, id model.ClientID) error {
	return c.store.Remove(ctx, id)
}

// PurgeJournal deletes id's journal. It is refused while id still has a
// document.
func (c *Client) PurgeJournal(ctx context.Context, id model.ClientID) error {
	return c.store.PurgeJournal(ctx, id)
}

// Clients lists the client directory.
func (c *Client) Clients(ctx context.Context) ([]model.ClientRecord, error) {
	return c.store.Clients(ctx)
}

// Journal returns id's operation journal.
func (c *Client) Journal(ctx context.Context, id model.ClientID) ([]model.JournalRecord, error) {
	return c.store.Journal(ctx, id)
}

// VerifyJournal checks id's journal hash chain and returns the number of
// records verified.
func (c *Client) VerifyJournal(ctx context.Context, id model.ClientID) (int, error) {
	return c.store.VerifyJournal(ctx, id)
}

// Verify checks one client, or every client when id is empty.
func (c *Client) Verify(ctx context.Context, id model.ClientID) ([]*VerifyResult, error) {
	v := verify.NewVerifier(c.store)
	if id == "" {
		return v.VerifyAll(ctx)
	}
	r, err := v.VerifyClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return []*VerifyResult{r}, nil
}

// Diff compares the snapshots taken at fromTS and toTS. Either may be
// CurrentDocument.
func (c *Client) Diff(ctx context.Context, id model.ClientID, fromTS, toTS int64) (*DiffResult, error) {
	return diff.NewDiffer(c.store).Diff(ctx, id, fromTS, toTS)
}

// Doctor checks the data directory layout. strict also verifies every
// client.
func (c *Client) Doctor(ctx context.Context, strict bool) (*DoctorResult, error) {
	return doctor.NewDoctor(c.repo.Root, c.store).Check(ctx, strict)
}

// Status reports the save pipeline state.
func (c *Client) Status() Status { return c.store.Status() }

// LastError returns the most recent save failure, or nil.
func (c *Client) LastError() error { return c.store.LastError() }

// Flush waits for every queued save.
func (c *Client) Flush(ctx context.Context) error { return c.store.Flush(ctx) }

// Close drains the save queue, then stops webhook delivery and closes the
// backend.
func (c *Client) Close() error {
	return errors.Join(c.store.Close(), c.hooks.Close(), c.kv.Close())
}
