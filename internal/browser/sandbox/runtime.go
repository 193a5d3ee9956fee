package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/dom"
	"github.com/dop251/goja"
)

var ErrInterrupted = errors.New("script interrupted")

// Runtime wraps a goja VM bound to one document per Execute
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	console []LogEntry
	tasks   []task
	nextSeq int

	// element identity across the JS boundary
	proxies map[*dom.Element]*goja.Object
	owners  map[*goja.Object]*dom.Element
}

type task struct {
	fn    goja.Callable
	delay int64
	seq   int
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	r := &Runtime{config: config}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs script against doc. Pending timer callbacks run after the
// script in order of delay, and mutation records are flushed after the
// script and after each callback. The whole run shares one timeout.
func (r *Runtime) Execute(ctx context.Context, script string, doc *dom.Document) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, errors.New("runtime is closed")
	}

	start := time.Now()
	r.console = nil
	r.tasks = nil

	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-exited
		r.vm.ClearInterrupt()
	}()

	if doc != nil {
		r.bindDocument(doc)
	}

	result := &Result{}
	val, err := r.vm.RunString(script)
	flush(doc)
	if err != nil {
		result.Console = r.console
		result.Duration = time.Since(start)
		return result, wrapError(err)
	}
	result.Value = exportValue(val)

	for result.Tasks < r.maxTasks() && len(r.tasks) > 0 {
		sort.SliceStable(r.tasks, func(i, j int) bool {
			if r.tasks[i].delay != r.tasks[j].delay {
				return r.tasks[i].delay < r.tasks[j].delay
			}
			return r.tasks[i].seq < r.tasks[j].seq
		})
		next := r.tasks[0]
		r.tasks = r.tasks[1:]
		result.Tasks++

		_, err := next.fn(goja.Undefined())
		flush(doc)
		if err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				result.Console = r.console
				result.Duration = time.Since(start)
				return result, wrapError(err)
			}
			r.log("error", err.Error())
		}
	}

	result.Console = r.console
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runtime) maxTasks() int {
	if r.config.MaxTasks > 0 {
		return r.config.MaxTasks
	}
	return DefaultConfig().MaxTasks
}

// Reset discards all script state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reset()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.console = nil
	r.tasks = nil
	r.proxies = nil
	r.owners = nil
	return nil
}

func (r *Runtime) reset() error {
	r.vm = goja.New()
	r.vm.SetMaxCallStackSize(1024)
	r.console = nil
	r.tasks = nil
	r.proxies = make(map[*dom.Element]*goja.Object)
	r.owners = make(map[*goja.Object]*dom.Element)
	return r.setupGlobals()
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	if err := r.vm.Set("setTimeout", r.setTimeout); err != nil {
		return err
	}
	// Repeating timers fire once.
	if err := r.vm.Set("setInterval", r.setTimeout); err != nil {
		return err
	}
	return r.vm.Set("window", r.vm.GlobalObject())
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	r.nextSeq++
	r.tasks = append(r.tasks, task{fn: fn, delay: call.Argument(1).ToInteger(), seq: r.nextSeq})
	return r.vm.ToValue(r.nextSeq)
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.log(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (r *Runtime) log(level, msg string) {
	r.console = append(r.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
}

func flush(doc *dom.Document) {
	if doc != nil {
		doc.Flush()
	}
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func wrapError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
	}
	return fmt.Errorf("script error: %w", err)
}
