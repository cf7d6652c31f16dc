// Package rodpage exposes a live Chrome tab as a picker.Document and bridges
// page input events to a picker.Controller.
//
// Elements are addressed through integer handles allocated by a page-side
// registry (window.__devlens), so two handles are equal exactly when they
// designate the same node. Handles do not survive navigation.
package rodpage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/devlens/picker"
)

// Handle designates a node in the page registry. Zero is no node.
type Handle int

// Document implements picker.Document over a rod page. Read failures
// (detached nodes, closed targets) are logged and reported as "no element"
// or zero values, since the picker interfaces carry no errors.
type Document struct {
	page    *rod.Page
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithTimeout bounds every page round trip. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(doc *Document) { doc.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(doc *Document) {
		if l != nil {
			doc.logger = l
		}
	}
}

// New wraps page and installs the handle registry in the current document
// and every document loaded afterwards.
func New(page *rod.Page, opts ...Option) (*Document, error) {
	d := &Document{page: page, timeout: 5 * time.Second, logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	if _, err := page.EvalOnNewDocument("(" + registryJS + ")()"); err != nil {
		return nil, fmt.Errorf("rodpage: install registry: %w", err)
	}
	if _, err := d.eval(registryJS); err != nil {
		return nil, fmt.Errorf("rodpage: install registry: %w", err)
	}
	return d, nil
}

// Page returns the underlying rod page.
func (d *Document) Page() *rod.Page { return d.page }

func (d *Document) eval(js string, args ...any) (gson.JSON, error) {
	p := d.page.Timeout(d.timeout)
	defer p.CancelTimeout()
	res, err := p.Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// read evaluates js and logs failures; the zero JSON is returned on error.
func (d *Document) read(op, js string, args ...any) gson.JSON {
	v, err := d.eval(js, args...)
	if err != nil {
		d.logger.Warn("rodpage: eval failed", "op", op, "error", err)
	}
	return v
}

func handle(el picker.Element) Handle {
	h, _ := el.(Handle)
	return h
}

func element(v gson.JSON) picker.Element {
	if v.Nil() {
		return nil
	}
	if h := Handle(v.Int()); h != 0 {
		return h
	}
	return nil
}

func str(v gson.JSON) string {
	if v.Nil() {
		return ""
	}
	return v.Str()
}

func decode(v gson.JSON, out any) error {
	b, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (d *Document) TagName(el picker.Element) string {
	h := handle(el)
	if h == 0 {
		return ""
	}
	return str(d.read("tag", tagNameJS, h))
}

func (d *Document) Attr(el picker.Element, name string) string {
	h := handle(el)
	if h == 0 {
		return ""
	}
	return str(d.read("attr", attrJS, h, name))
}

func (d *Document) Parent(el picker.Element) picker.Element {
	h := handle(el)
	if h == 0 {
		return nil
	}
	return element(d.read("parent", parentJS, h))
}

func (d *Document) PrevSibling(el picker.Element) picker.Element {
	h := handle(el)
	if h == 0 {
		return nil
	}
	return element(d.read("sibling", prevSiblingJS, h))
}

func (d *Document) Text(el picker.Element) (string, bool) {
	h := handle(el)
	if h == 0 {
		return "", false
	}
	v := d.read("text", textJS, h)
	if v.Nil() {
		return "", false
	}
	return v.Str(), true
}

func (d *Document) ElementAt(x, y float64) picker.Element {
	return element(d.read("hit", elementAtJS, x, y))
}

func (d *Document) Box(el picker.Element) picker.Box {
	var b picker.Box
	h := handle(el)
	if h == 0 {
		return b
	}
	if err := decode(d.read("box", boxJS, h), &b); err != nil {
		d.logger.Warn("rodpage: decode box", "error", err)
	}
	return b
}

func (d *Document) Scroll() (float64, float64) {
	v := d.read("scroll", scrollJS)
	return v.Get("x").Num(), v.Get("y").Num()
}

func (d *Document) ComputedStyle(el picker.Element, props ...string) map[string]string {
	out := map[string]string{}
	h := handle(el)
	if h == 0 || len(props) == 0 {
		return out
	}
	if err := decode(d.read("style", styleJS, h, props), &out); err != nil {
		d.logger.Warn("rodpage: decode style", "error", err)
	}
	return out
}

func (d *Document) MountOverlay(style picker.OverlayStyle) (picker.Element, error) {
	v, err := d.eval(mountJS, picker.OverlayID, style.CSS(), style.Cursor)
	if err != nil {
		return nil, fmt.Errorf("rodpage: mount overlay: %w", err)
	}
	el := element(v)
	if el == nil {
		return nil, fmt.Errorf("rodpage: mount overlay: no handle")
	}
	return el, nil
}

func (d *Document) MoveOverlay(ov picker.Element, b picker.Box) {
	if h := handle(ov); h != 0 {
		d.read("move", moveJS, h, b.X, b.Y, b.Width, b.Height)
	}
}

func (d *Document) RemoveOverlay(ov picker.Element) {
	if h := handle(ov); h != 0 {
		d.read("remove", removeJS, h)
	}
}

// Info is what the page reports about itself.
type Info struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	UserAgent string `json:"userAgent"`
	Language  string `json:"language"`
	Platform  string `json:"platform"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Info reads location, title, navigator and viewport data from the page.
func (d *Document) Info() (Info, error) {
	var info Info
	v, err := d.eval(infoJS)
	if err != nil {
		return info, fmt.Errorf("rodpage: info: %w", err)
	}
	if err := decode(v, &info); err != nil {
		return info, fmt.Errorf("rodpage: info: %w", err)
	}
	return info, nil
}

var _ picker.Document = (*Document)(nil)
