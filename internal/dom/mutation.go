package dom

import (
	"sync/atomic"
)

// RecordType classifies a mutation record
type RecordType string

const (
	RecordChildList RecordType = "childList"
	RecordLoad      RecordType = "load"
)

// MutationRecord describes one structural change
type MutationRecord struct {
	Type         RecordType
	Target       *Element
	AddedNodes   []*Element
	RemovedNodes []*Element
}

// ObserveOptions selects what an observer receives
type ObserveOptions struct {
	Subtree bool // Include changes below the target, not only its direct children
	Load    bool // Include resource load completions
}

// Callback receives one batch of records in delivery order
type Callback func(records []MutationRecord)

// Observer is a live subscription to a document's mutation batches
type Observer struct {
	doc    *Document
	target *Element
	opts   ObserveOptions
	fn     Callback
	active atomic.Bool
}

// Observe subscribes fn to batches of changes under target
func (d *Document) Observe(target *Element, opts ObserveOptions, fn Callback) (*Observer, error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	if target.doc != d {
		return nil, ErrForeignNode
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !target.connectedLocked() {
		return nil, ErrDetached
	}
	o := &Observer{doc: d, target: target, opts: opts, fn: fn}
	o.active.Store(true)
	d.observers = append(d.observers, o)
	return o, nil
}

// Disconnect stops delivery immediately; batches already handed over are unaffected
func (o *Observer) Disconnect() {
	if !o.active.CompareAndSwap(true, false) {
		return
	}
	d := o.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := indexOfObserver(d.observers, o); i >= 0 {
		d.observers = append(d.observers[:i], d.observers[i+1:]...)
	}
}

// Active reports whether the observer still receives batches
func (o *Observer) Active() bool {
	return o.active.Load()
}

// queueLocked buffers a record; callers hold d.mu. Changes inside detached
// subtrees are invisible to observers and are not buffered.
func (d *Document) queueLocked(rec MutationRecord) {
	if len(d.observers) == 0 || !rec.Target.connectedLocked() {
		return
	}
	d.pending = append(d.pending, rec)
}

// Pending returns the number of records waiting for Flush
func (d *Document) Pending() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pending)
}

// Flush delivers the buffered records as one batch per interested observer.
// Callbacks run on the caller's goroutine, outside the document lock.
func (d *Document) Flush() {
	d.mu.Lock()
	records := d.pending
	d.pending = nil
	observers := append([]*Observer(nil), d.observers...)
	d.mu.Unlock()

	if len(records) == 0 {
		return
	}

	for _, o := range observers {
		batch := o.filter(records)
		if len(batch) == 0 || !o.active.Load() {
			continue
		}
		o.fn(batch)
	}
}

func (o *Observer) filter(records []MutationRecord) []MutationRecord {
	d := o.doc
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []MutationRecord
	for _, rec := range records {
		if rec.Type == RecordLoad && !o.opts.Load {
			continue
		}
		if rec.Target == o.target || (o.opts.Subtree && o.target.containsLocked(rec.Target)) {
			out = append(out, rec)
		}
	}
	return out
}

func indexOfObserver(list []*Observer, target *Observer) int {
	for i, o := range list {
		if o == target {
			return i
		}
	}
	return -1
}
