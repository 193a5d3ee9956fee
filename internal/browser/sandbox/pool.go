package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/dom"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// Pool manages a pool of reusable runtimes. Runtimes are reset on release so
// no state leaks between pages.
type Pool struct {
	config    Config
	sandboxes chan *Runtime
	size      int
	mu        sync.RWMutex
	closed    bool
}

// PoolStats is a point-in-time view of the pool
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`
}

// NewPool creates a sandbox pool
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:    config,
		sandboxes: make(chan *Runtime, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		sandbox, err := New(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.sandboxes <- sandbox
	}

	return pool, nil
}

// Acquire gets a runtime from the pool
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case sandbox := <-p.sandboxes:
		return sandbox, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release resets a runtime and returns it to the pool
func (p *Pool) Release(sandbox *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return sandbox.Close()
	}

	if err := sandbox.Reset(); err != nil {
		_ = sandbox.Close()
		if fresh, ferr := New(p.config); ferr == nil {
			p.sandboxes <- fresh
		}
		return err
	}

	select {
	case p.sandboxes <- sandbox:
		return nil
	default:
		return sandbox.Close()
	}
}

// ExecuteAll runs scripts in order on one runtime so they share globals, as
// the scripts of one page do
func (p *Pool) ExecuteAll(ctx context.Context, scripts []string, doc *dom.Document) ([]*Result, error) {
	sandbox, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = p.Release(sandbox) }()

	results := make([]*Result, 0, len(scripts))
	var errs []error
	for _, script := range scripts {
		res, err := sandbox.Execute(ctx, script, doc)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}

// Close closes pool and all runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sandboxes)
	for sandbox := range p.sandboxes {
		_ = sandbox.Close()
	}
	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Size:      p.size,
		Available: len(p.sandboxes),
		InUse:     p.size - len(p.sandboxes),
		Closed:    p.closed,
	}
}
