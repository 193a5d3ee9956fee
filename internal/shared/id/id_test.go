package id

import (
	"bytes"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateWithPrefix(ScanPrefix)
	if !strings.HasPrefix(id, "scan_") {
		t.Fatalf("ID should start with 'scan_', got: %s", id)
	}

	prefix, u, err := Split(id)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if prefix != ScanPrefix {
		t.Errorf("Expected prefix %q, got %q", ScanPrefix, prefix)
	}
	if len(u.String()) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(u.String()))
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{7}, 4096)))
	fixed := time.UnixMilli(1_700_000_000_000)
	gen.now = func() time.Time { return fixed }

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen.GenerateWithPrefix(ScanPrefix)
	}
	if !slices.IsSorted(ids) {
		t.Error("IDs generated in one millisecond should sort in generation order")
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	id := NewScanID()
	after := time.Now()

	ts, err := Timestamp(id.String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", ts, before, after)
	}
}

func TestSplitInvalid(t *testing.T) {
	tests := []string{
		"",
		"scan",
		"_01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"scan_not-a-ulid",
	}

	for _, raw := range tests {
		if _, _, err := Split(raw); err == nil {
			t.Errorf("Split(%q) should fail", raw)
		}
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const workers, perWorker = 8, 200

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := gen.GenerateWithPrefix(ScanPrefix)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("Expected %d unique IDs, got %d", workers*perWorker, len(seen))
	}
}
