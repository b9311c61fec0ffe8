// Package config provides configuration file support for the workspace store.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/fsutil"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/webhook"
)

// Dir is the store's state directory under the data dir.
const Dir = ".mops"

// Config represents the mops configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	History  HistoryConfig  `yaml:"history"`
	Queue    QueueConfig    `yaml:"queue"`
	Logging  LoggingConfig  `yaml:"logging"`
	Webhooks webhook.Config `yaml:"webhooks"`
	Bundles  BundlesConfig  `yaml:"bundles"`
}

// BackendConfig selects the key-value backend.
type BackendConfig struct {
	Type       string `yaml:"type" env:"MOPS_BACKEND"` // memory, file, sqlite, postgres, mysql
	DSN        string `yaml:"dsn,omitempty" env:"MOPS_DSN"`
	QuotaBytes int    `yaml:"quota_bytes,omitempty" env:"MOPS_QUOTA_BYTES"`
}

// HistoryConfig configures snapshot and journal retention.
type HistoryConfig struct {
	MaxSnapshots   int `yaml:"max_snapshots" env:"MOPS_MAX_SNAPSHOTS"`
	JournalRecords int `yaml:"journal_records,omitempty" env:"MOPS_JOURNAL_RECORDS"`
}

// QueueConfig configures the save queue.
type QueueConfig struct {
	Size int `yaml:"size" env:"MOPS_QUEUE_SIZE"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"MOPS_LOG_LEVEL"`
	Format string `yaml:"format" env:"MOPS_LOG_FORMAT"` // json, text
}

// BundlesConfig configures where exported bundles are written.
type BundlesConfig struct {
	Dir   string      `yaml:"dir,omitempty" env:"MOPS_BUNDLE_DIR"`
	MinIO MinIOConfig `yaml:"minio,omitempty"`
}

// MinIOConfig configures an S3-compatible bundle bucket.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty" env:"MOPS_MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key,omitempty" env:"MOPS_MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key,omitempty" env:"MOPS_MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket,omitempty" env:"MOPS_MINIO_BUCKET"`
	Region    string `yaml:"region,omitempty" env:"MOPS_MINIO_REGION"`
	UseSSL    bool   `yaml:"use_ssl,omitempty" env:"MOPS_MINIO_USE_SSL"`
}

// Enabled reports whether a MinIO endpoint is configured.
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{Type: "file"},
		History: HistoryConfig{MaxSnapshots: model.DefaultMaxSnapshots},
		Queue:   QueueConfig{Size: 64},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Webhooks: *webhook.DefaultConfig(),
	}
}

// Path returns the config file location for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, Dir, "config.yaml")
}

// Load loads configuration from <dataDir>/.mops/config.yaml and then
// applies MOPS_* environment overrides. A missing file yields defaults.
func Load(dataDir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dataDir))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to <dataDir>/.mops/config.yaml.
func Save(dataDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsutil.AtomicWrite(Path(dataDir), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Redacted returns a copy of c with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Bundles.MinIO.SecretKey != "" {
		out.Bundles.MinIO.SecretKey = redactedValue
	}
	out.Webhooks.Hooks = append([]webhook.HookConfig(nil), c.Webhooks.Hooks...)
	for i := range out.Webhooks.Hooks {
		if out.Webhooks.Hooks[i].Secret != "" {
			out.Webhooks.Hooks[i].Secret = redactedValue
		}
	}
	return &out
}

const redactedValue = "********"

var backendTypes = map[string]bool{"memory": true, "file": true, "sqlite": true, "postgres": true, "mysql": true}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if !backendTypes[c.Backend.Type] {
		return errclass.ErrValidation.WithMessagef("invalid backend.type %q", c.Backend.Type)
	}
	if (c.Backend.Type == "postgres" || c.Backend.Type == "mysql") && c.Backend.DSN == "" {
		return errclass.ErrValidation.WithMessagef("backend.dsn is required for %s", c.Backend.Type)
	}
	if c.History.JournalRecords < 0 {
		return errclass.ErrValidation.WithMessagef("history.journal_records must not be negative, got %d", c.History.JournalRecords)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errclass.ErrValidation.WithMessagef("invalid logging.format %q", c.Logging.Format)
	}
	return nil
}

// MaxSnapshots returns the retention bound. Values below 1 fall back to
// the default of 5.
func (c *Config) MaxSnapshots() int {
	if c.History.MaxSnapshots < 1 {
		return model.DefaultMaxSnapshots
	}
	return c.History.MaxSnapshots
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected integer: %w", err)
			}
			*p(c) = n
			return nil
		},
	}
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false: %w", err)
			}
			*p(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"backend.type":             stringField(func(c *Config) *string { return &c.Backend.Type }),
	"backend.dsn":              stringField(func(c *Config) *string { return &c.Backend.DSN }),
	"backend.quota_bytes":      intField(func(c *Config) *int { return &c.Backend.QuotaBytes }),
	"history.max_snapshots":    intField(func(c *Config) *int { return &c.History.MaxSnapshots }),
	"history.journal_records":  intField(func(c *Config) *int { return &c.History.JournalRecords }),
	"queue.size":               intField(func(c *Config) *int { return &c.Queue.Size }),
	"logging.level":            stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.format":           stringField(func(c *Config) *string { return &c.Logging.Format }),
	"webhooks.enabled":         boolField(func(c *Config) *bool { return &c.Webhooks.Enabled }),
	"webhooks.max_retries":     intField(func(c *Config) *int { return &c.Webhooks.MaxRetries }),
	"bundles.dir":              stringField(func(c *Config) *string { return &c.Bundles.Dir }),
	"bundles.minio.endpoint":   stringField(func(c *Config) *string { return &c.Bundles.MinIO.Endpoint }),
	"bundles.minio.bucket":     stringField(func(c *Config) *string { return &c.Bundles.MinIO.Bucket }),
	"bundles.minio.region":     stringField(func(c *Config) *string { return &c.Bundles.MinIO.Region }),
	"bundles.minio.use_ssl":    boolField(func(c *Config) *bool { return &c.Bundles.MinIO.UseSSL }),
	"bundles.minio.access_key": stringField(func(c *Config) *string { return &c.Bundles.MinIO.AccessKey }),
}

// Keys lists the dotted keys accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dotted key such as "history.max_snapshots".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return "", errclass.ErrValidation.WithMessagef("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return f.get(c), nil
}

// Set assigns a dotted key from its string form and revalidates.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return errclass.ErrValidation.WithMessagef("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
