package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/dom"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/monitoring"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Defaults
const (
	DefaultThreshold     = 0.7
	DefaultCacheSize     = 1000
	DefaultMinDimension  = 50
	DefaultMaxCanvasSide = 224
	DefaultCORSTimeout   = 3 * time.Second

	cacheKeyLimit = 100
	epsilon       = 1e-9
)

// Analyzer classifies image elements with pixel, context, URL and structural
// heuristics. It is safe for concurrent use.
type Analyzer struct {
	threshold     atomic.Uint64 // math.Float64bits
	cache         *verdictCache
	minDimension  int
	maxCanvasSide int
	corsTimeout   time.Duration
	fetcher       ImageFetcher
	log           *logging.Logger
	metrics       *monitoring.Metrics
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithCacheSize sets the verdict cache capacity
func WithCacheSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.cache = newVerdictCache(n, a.cache.onEvict)
		}
	}
}

// WithMinDimension sets the smallest width/height that is analyzed
func WithMinDimension(px int) Option {
	return func(a *Analyzer) {
		if px >= 0 {
			a.minDimension = px
		}
	}
}

// WithMaxCanvasSide caps the sampling canvas
func WithMaxCanvasSide(px int) Option {
	return func(a *Analyzer) {
		if px > 0 {
			a.maxCanvasSide = px
		}
	}
}

// WithCORSTimeout bounds the anonymous refetch of tainted images
func WithCORSTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.corsTimeout = d
		}
	}
}

// WithFetcher enables the CORS refetch
func WithFetcher(f ImageFetcher) Option {
	return func(a *Analyzer) { a.fetcher = f }
}

// WithThreshold sets the initial decision threshold
func WithThreshold(t float64) Option {
	return func(a *Analyzer) { a.SetThreshold(t) }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(a *Analyzer) { a.log = l.OrNop().Component("analyzer") }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New creates an analyzer
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		minDimension:  DefaultMinDimension,
		maxCanvasSide: DefaultMaxCanvasSide,
		corsTimeout:   DefaultCORSTimeout,
		log:           logging.NewNop(),
	}
	a.threshold.Store(math.Float64bits(DefaultThreshold))
	a.cache = newVerdictCache(DefaultCacheSize, func() { a.metrics.IncCacheEvictions() })

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the current decision threshold
func (a *Analyzer) Threshold() float64 {
	return math.Float64frombits(a.threshold.Load())
}

// SetThreshold clamps t to [0,1]. NaN is ignored.
func (a *Analyzer) SetThreshold(t float64) {
	if math.IsNaN(t) {
		return
	}
	a.threshold.Store(math.Float64bits(math.Max(0, math.Min(1, t))))
}

// ClearCache drops every cached verdict
func (a *Analyzer) ClearCache() {
	a.cache.Clear()
}

// CacheLen returns the number of cached verdicts
func (a *Analyzer) CacheLen() int {
	return a.cache.Len()
}

// CacheKey identifies an element's image by source and rendered size
func CacheKey(el *dom.Element) string {
	key := sourceOf(el) + "_" + strconv.Itoa(el.Width()) + "x" + strconv.Itoa(el.Height())
	return truncate(key, cacheKeyLimit)
}

// Analyze classifies el. It never fails: problems are reported as a
// non-NSFW verdict whose single reason describes the failure. Verdicts are
// cached by CacheKey; a cached verdict is returned without re-extraction,
// with IsNSFW evaluated against the current threshold.
func (a *Analyzer) Analyze(ctx context.Context, el *dom.Element) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Analysis panicked", zap.Any("panic", r))
			a.metrics.RecordAnalysis("error", 0)
			verdict = failure(reasonErrorPrefix + fmt.Sprint(r))
		}
	}()

	if el == nil {
		return failure(reasonErrorPrefix + "nil element")
	}

	key := CacheKey(el)
	if cached, ok := a.cache.Get(key); ok {
		a.metrics.RecordCacheLookup(true)
		a.metrics.RecordAnalysis("cached", 0)
		cached.IsNSFW = a.exceeds(cached.Confidence)
		return cached
	}
	a.metrics.RecordCacheLookup(false)

	w, h := el.Width(), el.Height()
	if w < a.minDimension || h < a.minDimension {
		a.metrics.RecordAnalysis("skipped", 0)
		return failure(ReasonTooSmall)
	}

	start := time.Now()
	sample, err := a.extract(ctx, el, w, h)
	if err != nil {
		if errors.Is(err, errNoImageData) {
			a.metrics.RecordAnalysis("no_data", 0)
			return failure(ReasonNoImageData)
		}
		a.metrics.RecordAnalysis("error", 0)
		return failure(reasonErrorPrefix + err.Error())
	}

	verdict = a.score(sample, el)
	a.cache.Put(key, verdict)

	outcome := "clean"
	if verdict.IsNSFW {
		outcome = "nsfw"
		a.log.Info("NSFW content detected",
			zap.String("confidence", fmt.Sprintf("%.1f%%", verdict.Confidence*100)),
			zap.String("src", truncate(sourceOf(el), 80)),
			zap.String("reasons", strings.Join(verdict.Reasons, ", ")))
	}
	a.metrics.RecordAnalysis(outcome, time.Since(start))
	return verdict
}

// score combines the heuristics. Weights are additive and the sum is not capped.
func (a *Analyzer) score(sample *pixelSample, el *dom.Element) Verdict {
	details := &Details{
		SkinTone: analyzeSkinTones(sample),
		Context:  analyzeContext(el),
		URL:      analyzeURL(sourceOf(el)),
	}
	noPixels := sample.crossOrigin()

	var weights []float64
	var reasons []string

	if !noPixels && details.SkinTone.SkinPercentage > skinRatioThreshold {
		weights = append(weights, weightSkin)
		reasons = append(reasons, skinReason(details.SkinTone.SkinPercentage))
	}

	if details.Context.Suspicious {
		weights = append(weights, pick(noPixels, weightContextNoPixels, weightContext))
		reasons = append(reasons, fmt.Sprintf("Suspicious context (%s)", strings.Join(details.Context.Reasons, ", ")))
	}

	if details.URL.Suspicious {
		weights = append(weights, pick(noPixels, weightURLNoPixels, weightURL))
		reasons = append(reasons, fmt.Sprintf("Suspicious URL pattern (%s)", strings.Join(details.URL.Reasons, ", ")))
	}

	if noPixels {
		co := analyzeCrossOrigin(el)
		details.CrossOrigin = &co
		if co.Suspicious {
			weights = append(weights, weightCrossOrigin)
			reasons = append(reasons, fmt.Sprintf("Cross-origin heuristics (%s)", strings.Join(co.Reasons, ", ")))
		}
	}

	confidence := 0.0
	if len(weights) > 0 {
		confidence = floats.Sum(weights)
	}
	if reasons == nil {
		reasons = []string{}
	}

	return Verdict{
		IsNSFW:     a.exceeds(confidence),
		Confidence: confidence,
		Reasons:    reasons,
		Details:    details,
	}
}

func (a *Analyzer) exceeds(confidence float64) bool {
	return confidence+epsilon >= a.Threshold()
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}

func truncate(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
