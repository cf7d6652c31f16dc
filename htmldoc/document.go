// Package htmldoc hosts the picker over a static HTML document parsed with
// golang.org/x/net/html. Nothing is rendered: callers assign viewport boxes
// to elements and the document hit-tests those boxes.
//
// It backs offline replays of captured pages and the picker's own tests.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/devlens/picker"
)

// Document is a picker.Document over a parsed HTML tree. Element handles
// are *html.Node values. All methods are safe for concurrent use.
type Document struct {
	mu      sync.RWMutex
	root    *html.Node
	body    *html.Node
	boxes   map[*html.Node]picker.Box
	scrollX float64
	scrollY float64
	cursor  string

	// base style of each mounted overlay, before geometry
	overlayCSS map[*html.Node]string
}

var _ picker.Document = (*Document)(nil)

// Parse reads an HTML document. The parser always synthesizes <html>,
// <head> and <body>, so the result is never empty.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	d := &Document{
		root:       root,
		boxes:      make(map[*html.Node]picker.Box),
		overlayCSS: make(map[*html.Node]string),
	}
	d.body = findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	if d.body == nil {
		return nil, fmt.Errorf("htmldoc: document has no body")
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Find returns the first element matching a CSS selector, or nil.
func (d *Document) Find(selector string) *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel := goquery.NewDocumentFromNode(d.root).Find(selector)
	if sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

// HTML serialises the current tree, overlay included.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	html.Render(&buf, d.root)
	return buf.String()
}

// --- picker.Tree ---

func node(el picker.Element) *html.Node {
	n, _ := el.(*html.Node)
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return n
}

func (d *Document) TagName(el picker.Element) string {
	if n := node(el); n != nil {
		return n.Data
	}
	return ""
}

func (d *Document) Attr(el picker.Element, name string) string {
	n := node(el)
	if n == nil {
		return ""
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return attr(n, name)
}

func (d *Document) Parent(el picker.Element) picker.Element {
	n := node(el)
	if n == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

func (d *Document) PrevSibling(el picker.Element) picker.Element {
	n := node(el)
	if n == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// Text returns the element's descendant text with whitespace collapsed.
func (d *Document) Text(el picker.Element) (string, bool) {
	n := node(el)
	if n == nil || !textBearing(n) {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return collectText(n), true
}

func textBearing(n *html.Node) bool {
	if n.Namespace != "" {
		return false
	}
	if voidElements[n.DataAtom] {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Noscript, atom.Head:
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Head {
			return false
		}
	}
	return true
}

var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true,
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, w := range strings.Fields(n.Data) {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(w)
			}
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	name = strings.ToLower(name)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, name, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// walk visits element nodes in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
