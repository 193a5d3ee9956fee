package dom

import (
	"strings"
)

// selector is one compound selector: tag, #id, .class and [attr] / [attr=value]
// parts with no combinators. Groups are comma separated.
type selector struct {
	tag     string
	id      string
	classes []string
	attrs   [][2]string
	hasVal  []bool
}

// QuerySelectorAll finds matching descendants of e in document order
func (e *Element) QuerySelectorAll(sel string) []*Element {
	group := parseSelectorGroup(sel)
	if len(group) == 0 {
		return nil
	}

	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var result []*Element
	for _, c := range e.children {
		walk(c, func(n *Element) bool {
			if matchesAny(n, group) {
				result = append(result, n)
			}
			return true
		})
	}
	return result
}

// QuerySelector returns the first matching descendant or nil
func (e *Element) QuerySelector(sel string) *Element {
	if all := e.QuerySelectorAll(sel); len(all) > 0 {
		return all[0]
	}
	return nil
}

// Matches reports whether e itself matches the selector group
func (e *Element) Matches(sel string) bool {
	group := parseSelectorGroup(sel)
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return matchesAny(e, group)
}

func matchesAny(e *Element, group []selector) bool {
	for _, s := range group {
		if s.match(e) {
			return true
		}
	}
	return false
}

func (s selector) match(e *Element) bool {
	if e.tagName == "#document" {
		return false
	}
	if s.tag != "" && s.tag != "*" && s.tag != e.tagName {
		return false
	}
	if s.id != "" && e.attrs["id"] != s.id {
		return false
	}
	if len(s.classes) > 0 {
		have := strings.Fields(e.attrs["class"])
		for _, want := range s.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for i, a := range s.attrs {
		v, ok := e.attrs[a[0]]
		if !ok || (s.hasVal[i] && v != a[1]) {
			return false
		}
	}
	return true
}

func parseSelectorGroup(sel string) []selector {
	var group []selector
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		group = append(group, parseSelector(part))
	}
	return group
}

func parseSelector(s string) selector {
	var out selector
	i := 0
	readName := func() string {
		start := i
		for i < len(s) && !strings.ContainsRune("#.[", rune(s[i])) {
			i++
		}
		return s[start:i]
	}

	out.tag = strings.ToLower(readName())
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			out.id = readName()
		case '.':
			i++
			out.classes = append(out.classes, readName())
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				end = len(s) - i
			}
			body := s[i+1 : i+end]
			i += end + 1
			name, val, hasVal := strings.Cut(body, "=")
			out.attrs = append(out.attrs, [2]string{strings.ToLower(strings.TrimSpace(name)), strings.Trim(strings.TrimSpace(val), `"'`)})
			out.hasVal = append(out.hasVal, hasVal)
		default:
			i++
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
