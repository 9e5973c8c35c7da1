// Package extractd extracts the embedded JPEG previews of camera RAW files
// through a long-running exiftool process.
package extractd

import (
	"errors"
	"io"
	"sync"

	"github.com/przemyslawpluta/extractd/internal/config"
	"github.com/przemyslawpluta/extractd/internal/engine"
	"github.com/przemyslawpluta/extractd/internal/pipeline"
	"github.com/przemyslawpluta/extractd/internal/scanner"
	"github.com/przemyslawpluta/extractd/internal/session"
	"github.com/przemyslawpluta/extractd/pkg/types"
)

// Re-export types for the public API
type (
	Config         = config.Config
	Options        = types.Options
	Output         = types.Output
	Result         = types.Result
	Preview        = types.Preview
	Status         = types.Status
	ErrorKind      = types.ErrorKind
	Worker         = engine.Worker
	Factory        = engine.Factory
	ProgressUpdate = pipeline.ProgressUpdate
)

// Error kinds
const (
	ErrorKindNotFound  = types.ErrorKindNotFound
	ErrorKindNoPreview = types.ErrorKindNoPreview
	ErrorKindRead      = types.ErrorKindRead
	ErrorKindExtract   = types.ErrorKindExtract
)

var (
	// ErrNoSources is returned when no source is given.
	ErrNoSources = types.ErrNoSources
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("extractd client is closed")
)

func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// Client owns one engine session. Calls may be issued concurrently; when they
// share the persistent worker its commands are serialized.
type Client struct {
	mu       sync.RWMutex
	cfg      *Config
	session  *session.Session
	pipeline *pipeline.Pipeline
	scanner  *scanner.Scanner
	closed   bool
}

// New validates cfg and returns a client starting exiftool from
// cfg.ExifToolPath on demand.
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, engine.NewFactory(cfg.ExifToolPath, cfg.ExifToolArgs...))
}

// NewWithFactory is like New but starts workers with factory.
func NewWithFactory(cfg *Config, factory Factory) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, factory)
}

func newClient(cfg *Config, factory Factory) (*Client, error) {
	sess := session.New(factory)
	p, err := pipeline.New(cfg, sess)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:      cfg,
		session:  sess,
		pipeline: p,
		scanner:  scanner.New(cfg.IncludeExtensions),
	}, nil
}

// Options returns the per-call defaults taken from the configuration.
func (c *Client) Options() Options {
	return c.cfg.Options()
}

func (c *Client) SetProgressCallback(cb func(ProgressUpdate)) {
	c.pipeline.SetProgressCallback(cb)
}

// SetConsole redirects the progress line and batch summaries.
func (c *Client) SetConsole(w io.Writer) {
	c.pipeline.SetConsole(w)
}

// Expand replaces directories among paths with the RAW files they contain.
func (c *Client) Expand(paths ...string) ([]string, error) {
	return c.scanner.Expand(paths)
}

// Generate extracts the preview of every source in order. Every source yields
// one result; only an empty source list is an error.
func (c *Client) Generate(opts Options, sources ...string) (*Output, error) {
	return c.run(nil, opts, sources)
}

// GenerateWith is like Generate but runs on w instead of an ephemeral worker.
// w is not ended. An existing or requested persistent worker still wins.
func (c *Client) GenerateWith(w Worker, opts Options, sources ...string) (*Output, error) {
	return c.run(w, opts, sources)
}

// Extract is a single-shot Generate: it never starts a persistent worker,
// though it reuses one that already exists.
func (c *Client) Extract(opts Options, sources ...string) (*Output, error) {
	opts.Persist = false
	return c.run(nil, opts, sources)
}

func (c *Client) run(w Worker, opts Options, sources []string) (*Output, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	return c.pipeline.Run(sources, opts, w)
}

func (c *Client) Status() Status {
	return c.session.Status()
}

// Desist ends the persistent worker, if any.
func (c *Client) Desist() (Status, error) {
	return c.session.Desist()
}

// Close ends the persistent worker and releases the log file. Calls that are
// still running finish first.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	_, err := c.session.Desist()
	if closeErr := c.pipeline.Close(); err == nil {
		err = closeErr
	}
	return err
}
