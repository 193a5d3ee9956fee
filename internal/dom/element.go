package dom

import (
	"image"
	"strconv"
	"strings"
)

// MaxDimension bounds width and height attributes
const MaxDimension = 1 << 16

// Resource is a decoded image attached to an element by the page host
type Resource struct {
	URL         string      // URL the bytes were actually loaded from (currentSrc)
	Image       image.Image // Decoded image, nil when decoding failed
	OriginClean bool        // False when the bytes came from another origin without CORS approval
}

// Element represents a DOM element. Pointer identity is element identity.
type Element struct {
	doc      *Document
	tagName  string
	attrs    map[string]string
	order    []string
	text     string
	parent   *Element
	children []*Element
	resource *Resource
	complete bool
}

// Document returns the owner document
func (e *Element) Document() *Document {
	return e.doc
}

// TagName returns the lowercase tag name
func (e *Element) TagName() string {
	return e.tagName
}

// ID returns the id attribute
func (e *Element) ID() string {
	return e.GetAttribute("id")
}

// ClassName returns the raw class attribute
func (e *Element) ClassName() string {
	return e.GetAttribute("class")
}

// Alt returns the alt attribute
func (e *Element) Alt() string {
	return e.GetAttribute("alt")
}

// Title returns the title attribute
func (e *Element) Title() string {
	return e.GetAttribute("title")
}

// TextContent returns the element's own text
func (e *Element) TextContent() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.text
}

// SetTextContent replaces the element's own text
func (e *Element) SetTextContent(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.text = text
}

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	v, _ := e.Attr(name)
	return v
}

// Attr retrieves attribute value and whether it is present
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	v, ok := e.attrs[strings.ToLower(name)]
	return v, ok
}

// HasAttribute reports whether the attribute is present
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttribute sets attribute value
func (e *Element) SetAttribute(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.setAttrLocked(strings.ToLower(name), value)
}

func (e *Element) setAttrLocked(name, value string) {
	if _, ok := e.attrs[name]; !ok {
		e.order = append(e.order, name)
	}
	e.attrs[name] = value
}

// RemoveAttribute deletes an attribute
func (e *Element) RemoveAttribute(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	name = strings.ToLower(name)
	if _, ok := e.attrs[name]; !ok {
		return
	}
	delete(e.attrs, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Attributes returns a copy of all attributes in insertion order
func (e *Element) Attributes() [][2]string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	out := make([][2]string, 0, len(e.order))
	for _, n := range e.order {
		out = append(out, [2]string{n, e.attrs[n]})
	}
	return out
}

// Classes returns the whitespace separated class tokens
func (e *Element) Classes() []string {
	return strings.Fields(e.ClassName())
}

// HasClass reports whether the class token is present
func (e *Element) HasClass(class string) bool {
	for _, c := range e.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends a class token unless already present
func (e *Element) AddClass(class string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	current := strings.Fields(e.attrs["class"])
	for _, c := range current {
		if c == class {
			return
		}
	}
	e.setAttrLocked("class", strings.Join(append(current, class), " "))
}

// Dataset returns data-* attributes keyed the way element.dataset names them
// (data-nsfw-confidence -> nsfwConfidence)
func (e *Element) Dataset() map[string]string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	out := make(map[string]string)
	for _, n := range e.order {
		if key, ok := strings.CutPrefix(n, "data-"); ok {
			out[datasetKey(key)] = e.attrs[n]
		}
	}
	return out
}

// SetData sets a data-* attribute from its dataset key
func (e *Element) SetData(key, value string) {
	e.SetAttribute("data-"+dataAttrName(key), value)
}

// Src returns the src attribute resolved against the document URL
func (e *Element) Src() string {
	raw, ok := e.Attr("src")
	if !ok || raw == "" {
		return ""
	}
	return e.doc.ResolveURL(raw)
}

// CurrentSrc returns the URL the current resource was loaded from
func (e *Element) CurrentSrc() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.resource == nil {
		return ""
	}
	return e.resource.URL
}

// Width returns the rendered width: the width attribute when set, otherwise the
// natural width of the loaded image
func (e *Element) Width() int {
	return e.dimension("width", func(r image.Rectangle) int { return r.Dx() })
}

// Height returns the rendered height
func (e *Element) Height() int {
	return e.dimension("height", func(r image.Rectangle) int { return r.Dy() })
}

func (e *Element) dimension(attr string, natural func(image.Rectangle) int) int {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if v, ok := e.attrs[attr]; ok {
		if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px")); err == nil && n >= 0 {
			return min(n, MaxDimension)
		}
	}
	if e.resource != nil && e.resource.Image != nil {
		return natural(e.resource.Image.Bounds())
	}
	return 0
}

// Complete reports whether the element's image finished loading. An img
// without a source is complete, matching HTMLImageElement.complete.
func (e *Element) Complete() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.complete {
		return true
	}
	return e.tagName == "img" && e.attrs["src"] == "" && e.attrs["srcset"] == ""
}

// Resource returns the loaded resource, if any
func (e *Element) Resource() *Resource {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.resource
}

// SetResource attaches a finished load and queues a load record
func (e *Element) SetResource(res *Resource) {
	e.doc.mu.Lock()
	e.resource = res
	e.complete = true
	e.doc.queueLocked(MutationRecord{Type: RecordLoad, Target: e})
	e.doc.mu.Unlock()
}

// Parent returns the parent element, nil for the root element or detached nodes
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.parent == nil || e.parent == e.doc.root {
		return nil
	}
	return e.parent
}

// Children returns a copy of the child list
func (e *Element) Children() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return append([]*Element(nil), e.children...)
}

// IsConnected reports whether the element is attached to its document
func (e *Element) IsConnected() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.connectedLocked()
}

func (e *Element) connectedLocked() bool {
	for n := e; n != nil; n = n.parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Contains reports whether other is e or one of its descendants
func (e *Element) Contains(other *Element) bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.containsLocked(other)
}

func (e *Element) containsLocked(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

func datasetKey(attr string) string {
	parts := strings.Split(attr, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func dataAttrName(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
