// Package id generates the identifiers that appear in scan reports and logs.
//
// Scan IDs are prefixed ULIDs ("scan_01J..."): they sort by creation time,
// so a directory of saved reports or a log search lists scans in order.
// Entropy is monotonic within a millisecond, so IDs from one generator
// sort in generation order even when created in the same millisecond.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ScanID identifies one page scan
type ScanID string

// ScanPrefix marks scan IDs
const ScanPrefix = "scan"

var errMalformed = errors.New("malformed prefixed ID")

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic crypto entropy
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator reading from entropy, for
// deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewScanID generates a scan ID from the default generator
func NewScanID() ScanID {
	return ScanID(Default().GenerateWithPrefix(ScanPrefix))
}

func (id ScanID) String() string { return string(id) }

// Split separates a prefixed ID into its prefix and ULID
func Split(prefixed string) (string, ulid.ULID, error) {
	prefix, raw, ok := strings.Cut(prefixed, "_")
	if !ok || prefix == "" {
		return "", ulid.ULID{}, fmt.Errorf("%w: %q", errMalformed, prefixed)
	}
	u, err := ulid.Parse(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return prefix, u, nil
}

// Timestamp returns the creation time encoded in a prefixed ID
func Timestamp(prefixed string) (time.Time, error) {
	_, u, err := Split(prefixed)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
