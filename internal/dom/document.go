package dom

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

var (
	ErrNilTarget     = errors.New("observe target is nil")
	ErrDetached      = errors.New("observe target is not attached to the document")
	ErrHierarchy     = errors.New("node cannot be inserted into its own subtree")
	ErrForeignNode   = errors.New("node belongs to another document")
	ErrNotChild      = errors.New("reference node is not a child of this node")
	ErrObserverEnded = errors.New("observer is disconnected")
)

// Document is a live element tree that records structural changes for observers
type Document struct {
	mu        sync.RWMutex
	url       *url.URL
	root      *Element
	pending   []MutationRecord
	observers []*Observer
}

// NewDocument creates an empty document rooted at <html><head/><body/></html>
func NewDocument(pageURL string) *Document {
	d := newBareDocument(pageURL)
	html := d.CreateElement("html")
	html.parent = d.root
	d.root.children = []*Element{html}
	head := d.CreateElement("head")
	body := d.CreateElement("body")
	head.parent, body.parent = html, html
	html.children = []*Element{head, body}
	return d
}

func newBareDocument(pageURL string) *Document {
	d := &Document{}
	if u, err := url.Parse(pageURL); err == nil {
		d.url = u
	} else {
		d.url = &url.URL{}
	}
	d.root = &Element{doc: d, tagName: "#document", attrs: map[string]string{}}
	return d
}

// URL returns the document URL
func (d *Document) URL() string {
	return d.url.String()
}

// Origin returns scheme://host[:port] of the document URL
func (d *Document) Origin() string {
	return Origin(d.url.String())
}

// Origin returns the serialized origin of a URL, or "null" for opaque ones
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "null"
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + host + ":" + port
	}
	return scheme + "://" + host
}

// ResolveURL converts a reference to an absolute URL
func (d *Document) ResolveURL(ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return d.url.ResolveReference(parsed).String()
}

// CreateElement creates a detached element owned by this document
func (d *Document) CreateElement(tag string) *Element {
	return &Element{
		doc:     d,
		tagName: strings.ToLower(tag),
		attrs:   make(map[string]string),
	}
}

// DocumentElement returns the <html> element
func (d *Document) DocumentElement() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.root.children {
		if c.tagName == "html" {
			return c
		}
	}
	return nil
}

// Body returns the <body> element or nil
func (d *Document) Body() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *Element
	walk(d.root, func(e *Element) bool {
		if e.tagName == "body" {
			found = e
			return false
		}
		return true
	})
	return found
}

// QuerySelectorAll finds matching elements in document order
func (d *Document) QuerySelectorAll(selector string) []*Element {
	return d.root.QuerySelectorAll(selector)
}

// QuerySelector returns the first match or nil
func (d *Document) QuerySelector(selector string) *Element {
	return d.root.QuerySelector(selector)
}

// GetElementByID returns the first element with the id
func (d *Document) GetElementByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *Element
	walk(d.root, func(e *Element) bool {
		if e.attrs["id"] == id && e != d.root {
			found = e
			return false
		}
		return true
	})
	return found
}

// AppendChild moves child to the end of e's child list
func (e *Element) AppendChild(child *Element) error {
	return e.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref; a nil ref appends
func (e *Element) InsertBefore(child, ref *Element) error {
	if child.doc != e.doc {
		return ErrForeignNode
	}

	d := e.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	if child.containsLocked(e) {
		return ErrHierarchy
	}
	idx := len(e.children)
	if ref != nil {
		idx = indexOf(e.children, ref)
		if idx < 0 {
			return ErrNotChild
		}
	}

	if old := child.parent; old != nil {
		i := indexOf(old.children, child)
		old.children = append(old.children[:i], old.children[i+1:]...)
		if old == e && i < idx {
			idx--
		}
		d.queueLocked(MutationRecord{Type: RecordChildList, Target: old, RemovedNodes: []*Element{child}})
	}

	e.children = append(e.children, nil)
	copy(e.children[idx+1:], e.children[idx:])
	e.children[idx] = child
	child.parent = e
	d.queueLocked(MutationRecord{Type: RecordChildList, Target: e, AddedNodes: []*Element{child}})
	return nil
}

// RemoveChild detaches child from e
func (e *Element) RemoveChild(child *Element) error {
	d := e.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	i := indexOf(e.children, child)
	if i < 0 {
		return ErrNotChild
	}
	e.children = append(e.children[:i], e.children[i+1:]...)
	child.parent = nil
	d.queueLocked(MutationRecord{Type: RecordChildList, Target: e, RemovedNodes: []*Element{child}})
	return nil
}

// Remove removes element from parent
func (e *Element) Remove() {
	e.doc.mu.RLock()
	parent := e.parent
	e.doc.mu.RUnlock()
	if parent == nil {
		return
	}
	_ = parent.RemoveChild(e)
}

func indexOf(list []*Element, target *Element) int {
	for i, e := range list {
		if e == target {
			return i
		}
	}
	return -1
}

// walk visits e and its descendants in document (pre-)order until fn returns false
func walk(e *Element, fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
