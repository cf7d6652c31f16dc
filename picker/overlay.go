package picker

import (
	"fmt"
	"strings"
)

// OverlayID is the DOM id hosts give to the highlight node.
const OverlayID = "devlens-highlight"

// OverlayStyle controls how the highlight is drawn. The overlay is always
// fixed-positioned and never intercepts pointer events, whatever the style.
type OverlayStyle struct {
	Border     string
	Background string
	Radius     string
	ZIndex     int
	Transition string
	Cursor     string
}

// DefaultOverlayStyle is the indigo highlight used by the extension.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		Border:     "2px solid #6366F1",
		Background: "rgba(99, 102, 241, 0.2)",
		Radius:     "4px",
		ZIndex:     2147483647,
		Transition: "all 0.1s ease",
		Cursor:     "crosshair",
	}
}

func (s OverlayStyle) withDefaults() OverlayStyle {
	d := DefaultOverlayStyle()
	if s.Border == "" {
		s.Border = d.Border
	}
	if s.Background == "" {
		s.Background = d.Background
	}
	if s.Radius == "" {
		s.Radius = d.Radius
	}
	if s.ZIndex == 0 {
		s.ZIndex = d.ZIndex
	}
	if s.Cursor == "" {
		s.Cursor = d.Cursor
	}
	return s
}

// CSS renders the declaration block for the overlay node.
func (s OverlayStyle) CSS() string {
	decl := []string{
		"position: fixed",
		"pointer-events: none",
		"box-sizing: border-box",
		"background: " + s.Background,
		"border: " + s.Border,
		"border-radius: " + s.Radius,
		fmt.Sprintf("z-index: %d", s.ZIndex),
	}
	if s.Transition != "" {
		decl = append(decl, "transition: "+s.Transition)
	}
	return strings.Join(decl, "; ") + ";"
}

// GeometryCSS renders the per-move declarations that align the overlay to b.
func GeometryCSS(b Box) string {
	return fmt.Sprintf("top: %gpx; left: %gpx; width: %gpx; height: %gpx;",
		b.Top(), b.Left(), b.Width, b.Height)
}

// overlay is the single highlight owned by a Controller while picking.
type overlay struct {
	surface Surface
	node    Element
}

func mountOverlay(s Surface, style OverlayStyle) (*overlay, error) {
	node, err := s.MountOverlay(style)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("host returned no overlay node")
	}
	return &overlay{surface: s, node: node}, nil
}

func (o *overlay) is(el Element) bool { return o != nil && el == o.node }

func (o *overlay) follow(b Box) { o.surface.MoveOverlay(o.node, b) }

func (o *overlay) remove() { o.surface.RemoveOverlay(o.node) }
