package picker

import "strings"

// MaxTextLength bounds Descriptor.InnerText, counted in Unicode code points.
// A browser-side slice(0, 200) counts UTF-16 code units instead, so text
// holding characters outside the Basic Multilingual Plane (most emoji) keeps
// more of them here: 200 emoji stay whole where the browser would keep 100.
// Counting code points never splits a character.
const MaxTextLength = 200

// StyleProperties are the only computed styles a Descriptor captures.
var StyleProperties = []string{
	"color",
	"background-color",
	"font-size",
	"font-family",
	"display",
	"position",
}

// Rect is the descriptor geometry. X and Y are page-absolute (viewport box
// plus scroll offset); Top, Right, Bottom and Left are the raw viewport edges.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Styles is the fixed subset of computed style a Descriptor carries.
type Styles struct {
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	FontSize        string `json:"fontSize"`
	FontFamily      string `json:"fontFamily"`
	Display         string `json:"display"`
	Position        string `json:"position"`
}

// Descriptor is the snapshot of a picked element. It is built once per
// confirmed pick and handed to the caller, which owns it from then on.
type Descriptor struct {
	TagName        string  `json:"tagName"`
	ClassName      string  `json:"className"`
	ID             string  `json:"id"`
	InnerText      *string `json:"innerText,omitempty"`
	Rect           Rect    `json:"rect"`
	XPath          string  `json:"xpath"`
	ComputedStyles Styles  `json:"computedStyles"`
}

// Text returns the captured text, "" when none was captured.
func (d Descriptor) Text() string {
	if d.InnerText == nil {
		return ""
	}
	return *d.InnerText
}

// Describe converts a live element into a Descriptor.
func Describe(doc interface {
	Tree
	Layout
}, el Element) Descriptor {
	box := doc.Box(el)
	sx, sy := doc.Scroll()

	d := Descriptor{
		TagName:   strings.ToLower(doc.TagName(el)),
		ClassName: doc.Attr(el, "class"),
		ID:        doc.Attr(el, "id"),
		Rect: Rect{
			X:      box.X + sx,
			Y:      box.Y + sy,
			Width:  box.Width,
			Height: box.Height,
			Top:    box.Top(),
			Right:  box.Right(),
			Bottom: box.Bottom(),
			Left:   box.Left(),
		},
		XPath: XPath(doc, el),
	}

	if text, ok := doc.Text(el); ok {
		text = truncate(text, MaxTextLength)
		d.InnerText = &text
	}

	cs := doc.ComputedStyle(el, StyleProperties...)
	d.ComputedStyles = Styles{
		Color:           cs["color"],
		BackgroundColor: cs["background-color"],
		FontSize:        cs["font-size"],
		FontFamily:      cs["font-family"],
		Display:         cs["display"],
		Position:        cs["position"],
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
