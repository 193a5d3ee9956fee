package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many probe requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a breaker
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
	// Cooldown is how long the circuit stays open before letting probes through
	Cooldown time.Duration
	// Probes is the number of requests admitted while half-open; that many
	// consecutive successes close the circuit again
	Probes uint32
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown == 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Probes == 0 {
		s.Probes = 1
	}
	return s
}

// Breaker tracks the health of one upstream
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu         sync.Mutex
	state      State
	failures   uint32
	successes  uint32
	inFlight   uint32
	openedAt   time.Time
	generation uint64
}

// New creates a breaker with the given settings
func New(name string, settings Settings) *Breaker {
	return &Breaker{
		name:     name,
		settings: settings.withDefaults(),
		now:      time.Now,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshLocked()
}

// Allow admits a request. The returned done func must be called exactly once
// with the request's outcome.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.refreshLocked() {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if b.inFlight >= b.settings.Probes {
			return nil, ErrTooManyRequests
		}
	}
	b.inFlight++
	gen := b.generation

	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.record(gen, success) })
	}, nil
}

// Do runs fn through the breaker. Panics count as failures and propagate.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	done, err := b.Allow()
	if err != nil {
		return zero, err
	}

	ok := false
	defer func() { done(ok) }()

	result, err := fn()
	ok = err == nil
	return result, err
}

func (b *Breaker) record(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		// Outcome from before the last transition.
		return
	}
	if b.inFlight > 0 {
		b.inFlight--
	}

	if success {
		b.failures = 0
		b.successes++
		if b.state == StateHalfOpen && b.successes >= b.settings.Probes {
			b.transitionLocked(StateClosed)
		}
		return
	}

	b.successes = 0
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
		b.transitionLocked(StateOpen)
	}
}

func (b *Breaker) refreshLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.transitionLocked(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures, b.successes, b.inFlight = 0, 0, 0
	b.generation++
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

// Group hands out one breaker per key (typically an upstream host)
type Group struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates a breaker group sharing settings
func NewGroup(settings Settings) *Group {
	return &Group{
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[key]; ok {
		return b
	}
	b := New(key, g.settings)
	g.breakers[key] = b
	return b
}

// States snapshots the state of every known breaker
func (g *Group) States() map[string]State {
	g.mu.Lock()
	list := make([]*Breaker, 0, len(g.breakers))
	for _, b := range g.breakers {
		list = append(list, b)
	}
	g.mu.Unlock()

	out := make(map[string]State, len(list))
	for _, b := range list {
		out[b.Name()] = b.State()
	}
	return out
}
