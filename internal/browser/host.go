package browser

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/analyzer"
	"github.com/GriffinCanCode/blurguard/internal/browser/sandbox"
	"github.com/GriffinCanCode/blurguard/internal/dom"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/monitoring"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Options configures a Host
type Options struct {
	EnableScripts   bool
	ScriptTimeout   time.Duration
	PoolSize        int
	LoadConcurrency int

	// Analyzer options applied to every injected classifier
	Analyzer []analyzer.Option
}

// DefaultOptions returns the host defaults
func DefaultOptions() Options {
	return Options{
		EnableScripts:   true,
		ScriptTimeout:   2 * time.Second,
		PoolSize:        4,
		LoadConcurrency: 4,
	}
}

// Host plays the browser: it loads pages into live documents, fetches their
// images and runs their scripts
type Host struct {
	client    *httpclient.Client
	pool      *sandbox.Pool
	sanitizer *bluemonday.Policy
	opts      Options
	log       *logging.Logger
	metrics   *monitoring.Metrics
}

// NewHost creates a host fetching through client
func NewHost(client *httpclient.Client, opts Options, log *logging.Logger, metrics *monitoring.Metrics) (*Host, error) {
	if opts.LoadConcurrency <= 0 {
		opts.LoadConcurrency = DefaultOptions().LoadConcurrency
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultOptions().PoolSize
	}

	h := &Host{
		client:    client,
		sanitizer: sanitizer(),
		opts:      opts,
		log:       log.OrNop().Component("browser"),
		metrics:   metrics,
	}

	if opts.EnableScripts {
		cfg := sandbox.DefaultConfig()
		if opts.ScriptTimeout > 0 {
			cfg.Timeout = opts.ScriptTimeout
		}
		pool, err := sandbox.NewPool(cfg, opts.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
		}
		h.pool = pool
	}
	return h, nil
}

// Client returns the fetch client pages are loaded with
func (h *Host) Client() *httpclient.Client {
	return h.client
}

// Close releases the script runtimes
func (h *Host) Close() error {
	if h.pool != nil {
		return h.pool.Close()
	}
	return nil
}

// Open fetches pageURL and loads it into a document. Images are not fetched
// and scripts are not run until asked.
func (h *Host) Open(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := h.client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	return h.Load(resp.URL, resp.Body, resp.ContentType)
}

// Load builds a page from already fetched markup
func (h *Host) Load(pageURL string, body []byte, contentType string) (*Page, error) {
	decoded, enc, err := decodeBody(body, contentType)
	if err != nil {
		return nil, err
	}

	scripts, err := inlineScripts(decoded)
	if err != nil {
		return nil, err
	}

	clean := h.sanitizer.SanitizeBytes(decoded)
	doc, err := dom.Parse(bytes.NewReader(clean), pageURL)
	if err != nil {
		return nil, err
	}

	h.log.Debug("Page loaded",
		zap.String("url", pageURL),
		zap.String("charset", enc),
		zap.Int("scripts", len(scripts)))

	return &Page{
		doc:     doc,
		host:    h,
		title:   title(decoded),
		scripts: scripts,
	}, nil
}
