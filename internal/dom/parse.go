package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse builds a document from HTML markup
func Parse(r io.Reader, pageURL string) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return FromGoquery(gq, pageURL), nil
}

// ParseString is Parse over a string
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// FromGoquery converts a parsed goquery document into a live document
func FromGoquery(gq *goquery.Document, pageURL string) *Document {
	d := newBareDocument(pageURL)
	for _, n := range gq.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			d.adopt(d.root, c)
		}
	}
	return d
}

// ParseFragment parses markup and returns its top-level elements, detached
func (d *Document) ParseFragment(markup string) ([]*Element, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	holder := d.CreateElement("#fragment")
	for _, n := range nodes {
		d.adopt(holder, n)
	}
	out := holder.children
	for _, e := range out {
		e.parent = nil
	}
	return out, nil
}

// adopt converts an html.Node subtree and attaches it under parent without
// queueing mutation records
func (d *Document) adopt(parent *Element, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		e := d.CreateElement(n.Data)
		for _, a := range n.Attr {
			e.setAttrLocked(strings.ToLower(a.Key), a.Val)
		}
		e.parent = parent
		parent.children = append(parent.children, e)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			d.adopt(e, c)
		}
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" || parent.tagName == "script" {
			parent.text += n.Data
		}
	}
}
