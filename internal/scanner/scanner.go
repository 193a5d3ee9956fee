package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/browser"
	"github.com/GriffinCanCode/blurguard/internal/exclusion"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/blurguard/internal/shared/id"
	"github.com/GriffinCanCode/blurguard/internal/watcher"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// DefaultSettleTimeout bounds the wait for queued classifications after the
// page has finished loading
const DefaultSettleTimeout = 30 * time.Second

// Options tune a single scan
type Options struct {
	Threshold   *float64 // overrides the analyzer threshold for this page
	IncludeHTML bool     // render the annotated document into the report
	OnMark      func(watcher.Annotation)
}

// Finding is one flagged element
type Finding struct {
	Tag        string   `json:"tag"`
	Src        string   `json:"src"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Reasons    []string `json:"reasons"`
}

// Report summarizes one scan
type Report struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	FinalURL    string            `json:"finalUrl,omitempty"`
	Title       string            `json:"title,omitempty"`
	Excluded    bool              `json:"excluded"`
	Threshold   float64           `json:"threshold"`
	StartedAt   time.Time         `json:"startedAt"`
	Duration    time.Duration     `json:"durationNs"`
	Resources   browser.LoadStats `json:"resources"`
	ScriptError string            `json:"scriptError,omitempty"`
	Flagged     []Finding         `json:"flagged"`
	HTML        string            `json:"html,omitempty"`
}

// JSON encodes the report for output
func (r *Report) JSON() ([]byte, error) {
	return sonic.MarshalIndent(r, "", "  ")
}

// Scanner drives a page through load, scripts and classification
type Scanner struct {
	host    *browser.Host
	exclude exclusion.Checker
	log     *logging.Logger
	metrics *monitoring.Metrics
	settle  time.Duration
}

// New creates a scanner. A nil exclude checker excludes nothing.
func New(host *browser.Host, exclude exclusion.Checker, log *logging.Logger, metrics *monitoring.Metrics) *Scanner {
	return &Scanner{
		host:    host,
		exclude: exclude,
		log:     log.OrNop().Component("scanner"),
		metrics: metrics,
		settle:  DefaultSettleTimeout,
	}
}

// SetSettleTimeout changes how long Scan waits for pending classifications
func (s *Scanner) SetSettleTimeout(d time.Duration) {
	if d > 0 {
		s.settle = d
	}
}

// Scan loads url and classifies every image it shows, including the ones its
// scripts insert. Excluded pages are reported without being fetched.
func (s *Scanner) Scan(ctx context.Context, url string, opts Options) (_ *Report, err error) {
	span, ctx := tracing.Start(ctx, "scan")
	span.SetTag("url", url)
	defer func() {
		span.SetError(err)
		span.End()
	}()

	report := &Report{
		ID:        id.NewScanID().String(),
		URL:       url,
		StartedAt: time.Now(),
		Flagged:   []Finding{},
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if s.exclude != nil && s.exclude.Excluded(url) {
		report.Excluded = true
		s.metrics.RecordScan("excluded")
		s.log.Info("Page excluded", zap.String("url", url))
		return report, nil
	}

	openSpan, openCtx := tracing.Start(ctx, "scan.open")
	page, err := s.host.Open(openCtx, url)
	openSpan.SetError(err)
	openSpan.End()
	if err != nil {
		s.metrics.RecordScan("error")
		return nil, err
	}
	report.FinalURL = page.URL()
	report.Title = page.Title()

	c, _ := page.InjectClassifier()
	if opts.Threshold != nil {
		c.Analyzer.SetThreshold(*opts.Threshold)
	}
	report.Threshold = c.Analyzer.Threshold()

	var (
		mu      sync.Mutex
		flagged []Finding
	)
	c.Watcher.OnMark(func(a watcher.Annotation) {
		mu.Lock()
		flagged = append(flagged, finding(a))
		mu.Unlock()
		if opts.OnMark != nil {
			opts.OnMark(a)
		}
	})

	if err := c.Watcher.Start(); err != nil {
		s.metrics.RecordScan("error")
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	defer c.Watcher.Stop()

	if err := s.load(ctx, page, report); err != nil {
		s.metrics.RecordScan("error")
		return nil, err
	}

	if opts.IncludeHTML {
		html, err := page.Document().Render()
		if err != nil {
			s.metrics.RecordScan("error")
			return nil, fmt.Errorf("failed to render page: %w", err)
		}
		report.HTML = html
	}

	mu.Lock()
	report.Flagged = append(report.Flagged, flagged...)
	mu.Unlock()

	s.metrics.RecordScan("ok")
	s.log.Info("Scan complete",
		zap.String("id", report.ID),
		zap.String("url", report.FinalURL),
		zap.Int("images", report.Resources.Requested),
		zap.Int("flagged", len(report.Flagged)))
	return report, nil
}

// load fetches images, runs scripts, fetches what the scripts added and waits
// for the watcher to drain
func (s *Scanner) load(ctx context.Context, page *browser.Page, report *Report) (err error) {
	span, ctx := tracing.Start(ctx, "scan.load")
	defer func() {
		span.SetTag("images", strconv.Itoa(report.Resources.Requested))
		span.SetError(err)
		span.End()
	}()

	stats, err := page.LoadResources(ctx)
	if err != nil {
		return fmt.Errorf("failed to load resources: %w", err)
	}

	if err := page.RunScripts(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.ScriptError = err.Error()
	}

	more, err := page.LoadResources(ctx)
	if err != nil {
		return fmt.Errorf("failed to load resources: %w", err)
	}
	report.Resources = browser.LoadStats{
		Requested:   stats.Requested + more.Requested,
		Loaded:      stats.Loaded + more.Loaded,
		CrossOrigin: stats.CrossOrigin + more.CrossOrigin,
		Failed:      stats.Failed + more.Failed,
	}

	settleCtx, cancel := context.WithTimeout(ctx, s.settle)
	defer cancel()
	c, _ := page.InjectClassifier()
	if err := c.Watcher.Settle(settleCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			s.log.Warn("Classification did not settle", zap.String("url", page.URL()), zap.Duration("timeout", s.settle))
			return nil
		}
		return err
	}
	return nil
}

func finding(a watcher.Annotation) Finding {
	f := Finding{
		Tag:        a.Element.TagName(),
		Src:        a.Src,
		Confidence: a.Verdict.Confidence,
		Reasons:    a.Verdict.Reasons,
	}
	if len(f.Reasons) > 0 {
		f.Reason = f.Reasons[0]
	} else {
		f.Reason = watcher.DefaultReasonText
	}
	return f
}
