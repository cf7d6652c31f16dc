package htmldoc

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/devlens/picker"
)

// --- picker.Surface ---

// MountOverlay appends a <div id="devlens-highlight"> to <body> and switches
// the document cursor.
func (d *Document) MountOverlay(style picker.OverlayStyle) (picker.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.body == nil {
		return nil, fmt.Errorf("htmldoc: no body to mount overlay on")
	}
	ov := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "id", Val: picker.OverlayID},
			{Key: "style", Val: style.CSS()},
		},
	}
	d.body.AppendChild(ov)
	d.overlayCSS[ov] = style.CSS()
	d.cursor = style.Cursor
	return ov, nil
}

// MoveOverlay rewrites the overlay geometry and records its box.
func (d *Document) MoveOverlay(overlay picker.Element, b picker.Box) {
	n := node(overlay)
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	setAttr(n, "style", d.overlayCSS[n]+" "+picker.GeometryCSS(b))
	d.boxes[n] = b
}

// RemoveOverlay detaches the overlay and restores the cursor.
func (d *Document) RemoveOverlay(overlay picker.Element) {
	n := node(overlay)
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	delete(d.boxes, n)
	delete(d.overlayCSS, n)
	d.cursor = ""
}

// Overlays counts highlight nodes currently in the tree.
func (d *Document) Overlays() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := 0
	walk(d.root, func(n *html.Node) {
		if attr(n, "id") == picker.OverlayID {
			count++
		}
	})
	return count
}

// Cursor is the document cursor set by the mounted overlay, "" by default.
func (d *Document) Cursor() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}
