package watcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/GriffinCanCode/blurguard/internal/analyzer"
	"github.com/GriffinCanCode/blurguard/internal/dom"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// ErrNoDocumentRoot is returned by Start when the document has no body.
var ErrNoDocumentRoot = errors.New("document has no body to observe")

// Marking applied to flagged elements
const (
	ClassNSFW         = "nsfw-content"
	AttrConfidence    = "data-nsfw-confidence"
	AttrReason        = "data-nsfw-reason"
	DefaultReasonText = "NSFW content detected"

	mediaSelector = "img, video, canvas"
)

// Analyzer classifies a single image element
type Analyzer interface {
	Analyze(ctx context.Context, el *dom.Element) analyzer.Verdict
}

// Annotation describes one element the watcher marked
type Annotation struct {
	Element *dom.Element
	Src     string
	Verdict analyzer.Verdict
}

// Watcher classifies media already in the document when started and every
// media element inserted afterwards, marking the ones judged NSFW. Each
// element is taken at most once.
type Watcher struct {
	doc      *dom.Document
	analyzer Analyzer
	log      *logging.Logger
	metrics  *monitoring.Metrics
	seen     *processedSet

	mu        sync.Mutex
	current   *run
	listeners []func(Annotation)
}

// run is one Start..Stop cycle
type run struct {
	observer *dom.Observer
	wake     chan struct{}
	finished chan struct{}

	qmu   sync.Mutex
	queue []job
	quit  bool

	// gate orders analysis starts against Stop
	gate    sync.RWMutex
	stopped bool
}

type job struct {
	sweep   bool
	records []dom.MutationRecord
	barrier chan struct{}
}

// New creates a watcher for doc
func New(doc *dom.Document, a Analyzer, log *logging.Logger, metrics *monitoring.Metrics) *Watcher {
	return &Watcher{
		doc:      doc,
		analyzer: a,
		log:      log.OrNop().Component("watcher"),
		metrics:  metrics,
		seen:     newProcessedSet(),
	}
}

// OnMark registers fn to be called for every annotation, on the worker goroutine
func (w *Watcher) OnMark(fn func(Annotation)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Running reports whether the watcher is observing
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current != nil
}

// Start subscribes to the document body and schedules the initial sweep.
// Calling Start while running is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil {
		return nil
	}

	body := w.doc.Body()
	if body == nil {
		return ErrNoDocumentRoot
	}

	r := &run{
		wake:     make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
	obs, err := w.doc.Observe(body, dom.ObserveOptions{Subtree: true, Load: true}, func(records []dom.MutationRecord) {
		r.push(job{records: records})
	})
	if err != nil {
		return fmt.Errorf("failed to observe document: %w", err)
	}
	r.observer = obs
	r.push(job{sweep: true})

	w.current = r
	go w.work(r)

	w.metrics.WatcherStarted()
	w.log.Info("Content watcher started", zap.String("url", w.doc.URL()))
	return nil
}

// Stop disconnects from the document. Analyses already started may finish;
// none starts after Stop returns. Calling Stop when stopped is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	r := w.current
	w.current = nil
	w.mu.Unlock()

	if r == nil {
		return
	}

	r.observer.Disconnect()

	r.gate.Lock()
	r.stopped = true
	r.gate.Unlock()

	r.qmu.Lock()
	r.quit = true
	pending := r.queue
	r.queue = nil
	r.qmu.Unlock()
	r.signal()

	// Release anyone waiting in Settle.
	for _, j := range pending {
		if j.barrier != nil {
			close(j.barrier)
		}
	}

	w.metrics.WatcherStopped()
	w.log.Info("Content watcher stopped", zap.String("url", w.doc.URL()))
}

// Settle blocks until every batch queued before the call has been processed,
// the watcher stops, or ctx is done
func (w *Watcher) Settle(ctx context.Context) error {
	w.mu.Lock()
	r := w.current
	w.mu.Unlock()
	if r == nil {
		return nil
	}

	barrier := make(chan struct{})
	if !r.push(job{barrier: barrier}) {
		return nil
	}

	select {
	case <-barrier:
		return nil
	case <-r.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *run) push(j job) bool {
	r.qmu.Lock()
	if r.quit {
		r.qmu.Unlock()
		return false
	}
	r.queue = append(r.queue, j)
	r.qmu.Unlock()
	r.signal()
	return true
}

func (r *run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *run) pop() (job, bool) {
	for {
		r.qmu.Lock()
		if r.quit {
			r.qmu.Unlock()
			return job{}, false
		}
		if len(r.queue) > 0 {
			j := r.queue[0]
			r.queue = r.queue[1:]
			r.qmu.Unlock()
			return j, true
		}
		r.qmu.Unlock()
		<-r.wake
	}
}

func (w *Watcher) work(r *run) {
	defer close(r.finished)

	for {
		j, ok := r.pop()
		if !ok {
			return
		}

		switch {
		case j.barrier != nil:
			close(j.barrier)
		case j.sweep:
			w.sweep(r)
		default:
			w.processBatch(r, j.records)
		}
	}
}

func (w *Watcher) sweep(r *run) {
	for _, el := range w.doc.QuerySelectorAll(mediaSelector) {
		if !w.process(r, el) {
			return
		}
	}
}

func (w *Watcher) processBatch(r *run, records []dom.MutationRecord) {
	for _, rec := range records {
		switch rec.Type {
		case dom.RecordLoad:
			if !w.process(r, rec.Target) {
				return
			}
		case dom.RecordChildList:
			for _, node := range rec.AddedNodes {
				for _, el := range mediaIn(node) {
					if !w.process(r, el) {
						return
					}
				}
			}
		}
	}
}

// mediaIn lists the media elements of a subtree, the root first
func mediaIn(root *dom.Element) []*dom.Element {
	var out []*dom.Element
	if root.Matches(mediaSelector) {
		out = append(out, root)
	}
	return append(out, root.QuerySelectorAll(mediaSelector)...)
}

// process handles one media element. It returns false once the run is stopped.
func (w *Watcher) process(r *run, el *dom.Element) bool {
	tag := el.TagName()
	if tag == "img" && !el.Complete() {
		// Picked up again from its load record.
		return true
	}
	if !w.seen.Add(el) {
		return true
	}
	w.metrics.RecordElement(tag)

	if tag != "img" {
		return true
	}

	r.gate.RLock()
	if r.stopped {
		r.gate.RUnlock()
		return false
	}
	verdict := w.analyzer.Analyze(context.Background(), el)
	r.gate.RUnlock()

	if verdict.IsNSFW {
		w.mark(el, verdict)
	}
	return true
}

func (w *Watcher) mark(el *dom.Element, v analyzer.Verdict) {
	el.AddClass(ClassNSFW)
	el.SetAttribute(AttrConfidence, strconv.FormatFloat(v.Confidence, 'f', 2, 64))
	reason := DefaultReasonText
	if len(v.Reasons) > 0 {
		reason = strings.Join(v.Reasons, "; ")
	}
	el.SetAttribute(AttrReason, reason)

	src := el.Src()
	if src == "" {
		src = el.CurrentSrc()
	}
	w.metrics.IncMarked()
	w.log.Info("NSFW content detected and blurred",
		zap.String("confidence", strconv.FormatFloat(v.Confidence*100, 'f', 1, 64)+"%"),
		zap.String("src", truncate(src, 80)))

	w.mu.Lock()
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()

	a := Annotation{Element: el, Src: src, Verdict: v}
	for _, fn := range listeners {
		fn(a)
	}
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
