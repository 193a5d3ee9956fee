// Package exclusion decides which pages are left untouched.
package exclusion

import (
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSites are excluded unless the list is replaced
var DefaultSites = []string{"chrome://", "meet.google.com", "localhost"}

const localhostEntry = "localhost"

// Checker reports whether a page URL is excluded
type Checker interface {
	Excluded(pageURL string) bool
}

// List is an in-memory excluded-site list. Plain entries match as
// case-insensitive substrings of the page URL. Entries containing glob
// metacharacters match the URL's host, or host plus path, with doublestar
// semantics ("*.example.com", "example.com/private/**").
type List struct {
	mu               sync.RWMutex
	entries          []string
	excludeLocalhost bool
}

// NewList creates a list from entries. The "localhost" entry only applies
// when excludeLocalhost is set.
func NewList(entries []string, excludeLocalhost bool) *List {
	l := &List{excludeLocalhost: excludeLocalhost}
	for _, e := range entries {
		l.Add(e)
	}
	return l
}

// Add inserts a normalized entry; duplicates are ignored
func (l *List) Add(entry string) {
	entry = normalize(entry)
	if entry == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !slices.Contains(l.entries, entry) {
		l.entries = append(l.entries, entry)
	}
}

// Remove deletes an entry
func (l *List) Remove(entry string) {
	entry = normalize(entry)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = slices.DeleteFunc(l.entries, func(e string) bool { return e == entry })
}

// Entries returns a copy of the list
func (l *List) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Excluded reports whether pageURL matches an entry. An empty URL is
// always excluded.
func (l *List) Excluded(pageURL string) bool {
	if pageURL == "" {
		return true
	}
	lower := strings.ToLower(pageURL)
	host, hostPath := splitURL(lower)

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e == localhostEntry && !l.excludeLocalhost {
			continue
		}
		if isGlob(e) {
			if globMatch(e, host) || globMatch(e, hostPath) {
				return true
			}
			continue
		}
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

// ShouldProcess reports whether pageURL is an http(s) page
func ShouldProcess(pageURL string) bool {
	return strings.HasPrefix(pageURL, "http://") || strings.HasPrefix(pageURL, "https://")
}

func normalize(entry string) string {
	return strings.ToLower(strings.TrimSpace(entry))
}

func isGlob(entry string) bool {
	return strings.ContainsAny(entry, "*?[{")
}

func globMatch(pattern, s string) bool {
	if s == "" {
		return false
	}
	ok, err := doublestar.Match(pattern, s)
	return err == nil && ok
}

func splitURL(raw string) (host, hostPath string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	host = u.Hostname()
	return host, host + strings.TrimSuffix(u.EscapedPath(), "/")
}
