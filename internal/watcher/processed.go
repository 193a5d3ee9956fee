package watcher

import (
	"runtime"
	"sync"
	"weak"

	"github.com/GriffinCanCode/blurguard/internal/dom"
)

// processedSet records element identity without keeping elements alive.
// Entries for collected elements are dropped by a runtime cleanup.
type processedSet struct {
	mu      sync.Mutex
	entries map[weak.Pointer[dom.Element]]struct{}
}

func newProcessedSet() *processedSet {
	return &processedSet{entries: make(map[weak.Pointer[dom.Element]]struct{})}
}

// Add marks el as seen and reports whether it was new
func (s *processedSet) Add(el *dom.Element) bool {
	key := weak.Make(el)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false
	}
	s.entries[key] = struct{}{}
	runtime.AddCleanup(el, s.forget, key)
	return true
}

func (s *processedSet) Has(el *dom.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[weak.Make(el)]
	return ok
}

func (s *processedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *processedSet) forget(key weak.Pointer[dom.Element]) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}
