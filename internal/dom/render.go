package dom

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render serializes the document to HTML
func (d *Document) Render() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	for _, c := range d.root.children {
		root.AppendChild(toNode(c))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return buf.String(), nil
}

// OuterHTML serializes a single element subtree
func (e *Element) OuterHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, toNode(e)); err != nil {
		return ""
	}
	return buf.String()
}

func toNode(e *Element) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     e.tagName,
		DataAtom: atom.Lookup([]byte(e.tagName)),
	}
	for _, name := range e.order {
		n.Attr = append(n.Attr, html.Attribute{Key: name, Val: e.attrs[name]})
	}
	if e.text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: e.text})
	}
	for _, c := range e.children {
		n.AppendChild(toNode(c))
	}
	return n
}
