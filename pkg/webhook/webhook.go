// Package webhook provides HTTP webhook notification support for workspace store events.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// EventType represents the type of store event that can trigger webhooks.
type EventType string

const (
	EventWorkspaceSaved    EventType = "workspace.saved"
	EventSnapshotRestored  EventType = "snapshot.restored"
	EventWorkspaceImported EventType = "workspace.imported"
	EventImportRejected    EventType = "import.rejected"
	EventWorkspaceExported EventType = "workspace.exported"
	EventClientRemoved     EventType = "client.removed"
)

// Event represents a store event payload sent to webhooks.
type Event struct {
	Event      EventType      `json:"event"`
	Timestamp  string         `json:"timestamp"`
	ClientID   string         `json:"client_id,omitempty"`
	SnapshotTS int64          `json:"snapshot_ts,omitempty"`
	Checksum   string         `json:"checksum,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HookConfig represents a single webhook configuration.
type HookConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Secret  string        `json:"secret,omitempty" yaml:"secret,omitempty"`
	Events  []EventType   `json:"events" yaml:"events"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Enabled bool          `json:"enabled" yaml:"enabled"`
}

// Config represents the webhook configuration.
type Config struct {
	Hooks          []HookConfig  `json:"hooks" yaml:"hooks,omitempty"`
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	MaxRetries     int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay" yaml:"retry_delay"`
	AsyncQueueSize int           `json:"async_queue_size" yaml:"async_queue_size"`
}

// DefaultConfig returns the default webhook configuration. Webhooks are
// off until enabled in config.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		AsyncQueueSize: 100,
	}
}

// Client handles sending webhook notifications.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
	queue  chan *job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

type job struct {
	event Event
	hook  HookConfig
}

// NewClient creates a new webhook client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.AsyncQueueSize
	if size < 1 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		queue:  make(chan *job, size),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Enabled {
		c.start()
	}

	return c
}

func (c *Client) start() {
	c.once.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

// worker processes webhook notifications in the background.
func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			for len(c.queue) > 0 {
				job := <-c.queue
				c.send(job)
			}
			return
		case job := <-c.queue:
			c.send(job)
		}
	}
}

// Send sends an event to all matching webhooks.
// If async is true, the event is queued for background sending and a full
// queue drops it. If async is false, the event is sent synchronously.
func (c *Client) Send(event Event, async bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.config.Enabled || c.closed {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if hook.Enabled && matchesEvent(hook, event.Event) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{event: event, hook: hook}:
			default:
				c.logger.Warn("webhook queue full, dropping event", "event", event.Event, "url", hook.URL)
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.sendSync(&job{event: event, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (c *Client) send(job *job) {
	if err := c.sendSync(job); err != nil {
		c.logger.Warn("webhook delivery failed", "event", job.event.Event, "url", job.hook.URL, "error", err)
	}
}

// sendSync sends a webhook synchronously with retries.
func (c *Client) sendSync(job *job) error {
	payload, err := json.Marshal(job.event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				if lastErr != nil {
					return lastErr
				}
				return c.ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		lastErr = c.post(job, payload)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (c *Client) post(job *job, payload []byte) error {
	ctx := context.Background()
	if job.hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.hook.Timeout)
		defer cancel()
	}

	req, err := c.createRequest(ctx, job.hook, job.event.Event, payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
}

func (c *Client) createRequest(ctx context.Context, hook HookConfig, event EventType, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mops-Webhook/1.0")
	req.Header.Set("X-Mops-Event", string(event))

	if hook.Secret != "" {
		req.Header.Set("X-Mops-Signature", Sign(payload, hook.Secret))
	}

	return req, nil
}

// Sign creates the HMAC-SHA256 signature sent in X-Mops-Signature.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(hook HookConfig, event EventType) bool {
	for _, e := range hook.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

// Close drains queued notifications and stops the worker.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || c.closed {
		return nil
	}
	c.closed = true

	c.cancel()
	c.wg.Wait()
	return nil
}

// WorkspaceSaved notifies that a save produced snapshot ts.
func (c *Client) WorkspaceSaved(clientID string, ts int64) {
	_ = c.Send(Event{Event: EventWorkspaceSaved, ClientID: clientID, SnapshotTS: ts}, true)
}

// SnapshotRestored notifies that snapshot ts was restored.
func (c *Client) SnapshotRestored(clientID string, ts int64) {
	_ = c.Send(Event{Event: EventSnapshotRestored, ClientID: clientID, SnapshotTS: ts}, true)
}

// WorkspaceImported notifies that a verified bundle was applied.
func (c *Client) WorkspaceImported(clientID string, checksum string) {
	_ = c.Send(Event{Event: EventWorkspaceImported, ClientID: clientID, Checksum: checksum}, true)
}

// ImportRejected notifies that a bundle failed validation.
func (c *Client) ImportRejected(clientID string, reason error) {
	ev := Event{Event: EventImportRejected, ClientID: clientID}
	if reason != nil {
		ev.Error = reason.Error()
	}
	_ = c.Send(ev, true)
}

// WorkspaceExported notifies that a bundle was produced.
func (c *Client) WorkspaceExported(clientID string, checksum string) {
	_ = c.Send(Event{Event: EventWorkspaceExported, ClientID: clientID, Checksum: checksum}, true)
}

// ClientRemoved notifies that every key of a client was deleted.
func (c *Client) ClientRemoved(clientID string) {
	_ = c.Send(Event{Event: EventClientRemoved, ClientID: clientID}, true)
}
