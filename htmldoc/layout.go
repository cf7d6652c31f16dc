package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/devlens/picker"
)

// SetBox assigns el's viewport box. Elements without a box are never hit.
func (d *Document) SetBox(el *html.Node, b picker.Box) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.boxes[el] = b
}

// Place assigns a box to the first element matching selector.
func (d *Document) Place(selector string, b picker.Box) (*html.Node, error) {
	n := d.Find(selector)
	if n == nil {
		return nil, fmt.Errorf("htmldoc: no element matches %q", selector)
	}
	d.SetBox(n, b)
	return n, nil
}

// SetScroll sets the document scroll offset.
func (d *Document) SetScroll(x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollX, d.scrollY = x, y
}

// --- picker.Layout ---

// ElementAt returns the last element in document order whose box contains
// the point. Elements with inline pointer-events: none or display: none are
// skipped, which is how the overlay stays out of hit-testing.
func (d *Document) ElementAt(x, y float64) picker.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hit *html.Node
	walk(d.root, func(n *html.Node) {
		b, ok := d.boxes[n]
		if !ok || !b.Contains(x, y) {
			return
		}
		st := inlineStyle(n)
		if st["pointer-events"] == "none" || st["display"] == "none" {
			return
		}
		hit = n
	})
	if hit == nil {
		return nil
	}
	return hit
}

func (d *Document) Box(el picker.Element) picker.Box {
	n := node(el)
	if n == nil {
		return picker.Box{}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.boxes[n]
}

func (d *Document) Scroll() (float64, float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scrollX, d.scrollY
}

// ComputedStyle resolves props from inline style attributes. Inherited
// properties walk up the ancestors; anything unset takes the user-agent
// default.
func (d *Document) ComputedStyle(el picker.Element, props ...string) map[string]string {
	n := node(el)
	out := make(map[string]string, len(props))
	if n == nil {
		return out
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	own := inlineStyle(n)
	for _, p := range props {
		p = strings.ToLower(p)
		if v, ok := own[p]; ok {
			out[p] = v
			continue
		}
		if inherited[p] {
			if v, ok := inheritedValue(n.Parent, p); ok {
				out[p] = v
				continue
			}
		}
		out[p] = defaultValue(n, p)
	}
	return out
}

var inherited = map[string]bool{
	"color":       true,
	"font-size":   true,
	"font-family": true,
	"font-weight": true,
	"visibility":  true,
	"cursor":      true,
}

func inheritedValue(n *html.Node, prop string) (string, bool) {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if v, ok := inlineStyle(n)[prop]; ok && v != "inherit" {
			return v, true
		}
	}
	return "", false
}

func defaultValue(n *html.Node, prop string) string {
	switch prop {
	case "color":
		return "rgb(0, 0, 0)"
	case "background-color":
		return "rgba(0, 0, 0, 0)"
	case "font-size":
		return "16px"
	case "font-family":
		return `"Times New Roman"`
	case "font-weight":
		return "400"
	case "display":
		return defaultDisplay(n)
	case "position":
		return "static"
	case "visibility":
		return "visible"
	case "cursor":
		return "auto"
	}
	return ""
}

func defaultDisplay(n *html.Node) string {
	if n.Namespace != "" {
		return "inline"
	}
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Title,
		atom.Meta, atom.Link, atom.Base, atom.Noscript:
		return "none"
	case atom.Li:
		return "list-item"
	case atom.Table:
		return "table"
	case atom.Tr:
		return "table-row"
	case atom.Td, atom.Th:
		return "table-cell"
	case atom.Html, atom.Body, atom.Div, atom.P, atom.Section, atom.Article,
		atom.Header, atom.Footer, atom.Nav, atom.Main, atom.Aside, atom.Form,
		atom.Ul, atom.Ol, atom.Dl, atom.Dd, atom.Dt, atom.Pre, atom.Blockquote,
		atom.Figure, atom.Figcaption, atom.Fieldset, atom.Hr, atom.Address,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Details,
		atom.Summary:
		return "block"
	case atom.Img, atom.Button, atom.Input, atom.Select, atom.Textarea:
		return "inline-block"
	}
	return "inline"
}

// inlineStyle parses the style attribute into lowercase property names.
// Later declarations win, as in CSS.
func inlineStyle(n *html.Node) map[string]string {
	raw := attr(n, "style")
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
