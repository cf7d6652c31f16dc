// Package picker implements the element picker: pointer tracking, a single
// highlight overlay, and a two-state selection finalizer that turns the
// element under the pointer into a serialisable Descriptor.
//
// The picker never touches a rendering engine directly. Hosts provide a
// [Document] (a live Chrome tab through capture/internal/rodpage, or a parsed
// HTML tree through htmldoc) and feed pointer and keyboard events into a
// [Controller].
//
// Usage:
//
//	c := picker.New(picker.Config{
//		Document: doc,
//		OnPick:   func(d picker.Descriptor) { ... },
//	})
//	c.StartPicking()
//	c.PointerMove(120, 48)
//	c.Click(picker.PrimaryButton)
package picker

// Element is an opaque handle to a node owned by the host Document.
// Handles must be comparable: two handles are equal iff they designate the
// same node. A nil Element means "no element".
type Element any

// Box is an element's border box relative to the viewport, in CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) Top() float64    { return b.Y }
func (b Box) Left() float64   { return b.X }
func (b Box) Right() float64  { return b.X + b.Width }
func (b Box) Bottom() float64 { return b.Y + b.Height }

// Contains reports whether the viewport point (x, y) lies inside the box.
// Edges are inclusive on the top/left side only, like browser hit-testing.
func (b Box) Contains(x, y float64) bool {
	return x >= b.Left() && x < b.Right() && y >= b.Top() && y < b.Bottom()
}

// Tree is read access to the host's element tree.
type Tree interface {
	// TagName returns the element's tag name in any case.
	TagName(el Element) string
	// Attr returns the value of a content attribute, "" when absent.
	Attr(el Element, name string) string
	// Parent returns the parent element, or nil when the parent is not an
	// element (the document itself).
	Parent(el Element) Element
	// PrevSibling returns the previous element sibling, or nil.
	PrevSibling(el Element) Element
	// Text returns the rendered text of the element. ok is false for
	// elements that do not bear text (void elements, script, SVG, ...).
	Text(el Element) (text string, ok bool)
}

// Layout is geometry and style resolution.
type Layout interface {
	// ElementAt returns the topmost element at the viewport point, or nil.
	ElementAt(x, y float64) Element
	// Box returns the element's viewport-relative border box.
	Box(el Element) Box
	// Scroll returns the document's current scroll offset.
	Scroll() (x, y float64)
	// ComputedStyle resolves the named CSS properties (kebab-case).
	ComputedStyle(el Element, props ...string) map[string]string
}

// Surface lets the picker draw its highlight on top of the page.
type Surface interface {
	// MountOverlay inserts a new overlay node styled with style.CSS() and
	// switches the page cursor to style.Cursor.
	MountOverlay(style OverlayStyle) (Element, error)
	// MoveOverlay aligns the overlay to a viewport box.
	MoveOverlay(overlay Element, b Box)
	// RemoveOverlay detaches the overlay and restores the page cursor.
	RemoveOverlay(overlay Element)
}

// Document is everything the picker needs from its host.
type Document interface {
	Tree
	Layout
	Surface
}
