package picker

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the picking mode of a Controller.
type State int

const (
	Idle State = iota
	Picking
)

func (s State) String() string {
	if s == Picking {
		return "picking"
	}
	return "idle"
}

// Button identifies a mouse button, numbered like MouseEvent.button.
type Button int

const (
	PrimaryButton   Button = 0
	AuxiliaryButton Button = 1
	SecondaryButton Button = 2
)

// EscapeKey is the KeyboardEvent.key value that cancels picking.
const EscapeKey = "Escape"

// Config configures a Controller.
type Config struct {
	Document Document

	// OnPick receives the descriptor of every confirmed pick. It is called
	// after the controller is back to Idle, without internal locks held, so
	// it may call StartPicking again.
	OnPick func(Descriptor)

	// Style of the highlight. Zero fields take DefaultOverlayStyle values.
	Style OverlayStyle

	Logger *slog.Logger
}

// Controller owns the picking state of one document: the mode flag, the
// tracked element and the highlight overlay. All methods are safe for
// concurrent use; events are applied in the order they acquire the lock.
type Controller struct {
	doc    Document
	onPick func(Descriptor)
	style  OverlayStyle
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	tracked Element
	overlay *overlay
}

// New creates an idle Controller.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		doc:    cfg.Document,
		onPick: cfg.OnPick,
		style:  cfg.Style.withDefaults(),
		logger: cfg.Logger,
	}
}

// State returns the current picking mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tracked returns the element currently under the highlight, or nil.
func (c *Controller) Tracked() Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracked
}

// StartPicking mounts the overlay and enters Picking. It is a no-op when
// already picking. On error the controller stays Idle.
func (c *Controller) StartPicking() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Picking {
		return nil
	}
	ov, err := mountOverlay(c.doc, c.style)
	if err != nil {
		return fmt.Errorf("picker: mount overlay: %w", err)
	}
	c.overlay = ov
	c.tracked = nil
	c.state = Picking
	c.logger.Debug("picker: picking started")
	return nil
}

// StopPicking cancels picking without emitting. No-op when idle.
func (c *Controller) StopPicking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Picking {
		c.finishLocked()
		c.logger.Debug("picker: picking cancelled")
	}
}

// PointerMove tracks the element at the viewport point (x, y). A miss, or a
// hit on the overlay itself, keeps the previous element.
func (c *Controller) PointerMove(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Picking {
		return
	}
	el := c.doc.ElementAt(x, y)
	if el == nil || c.overlay.is(el) {
		return
	}
	c.tracked = el
	c.overlay.follow(c.doc.Box(el))
}

// Click handles a pointer click. It reports whether the host must prevent
// the click's default action and stop its propagation, which is the case for
// every click received while picking. A primary click confirms the pick:
// the tracked element, if any, is described and emitted once, and the
// controller returns to Idle.
func (c *Controller) Click(button Button) (suppress bool) {
	c.mu.Lock()
	if c.state != Picking {
		c.mu.Unlock()
		return false
	}
	if button != PrimaryButton {
		c.mu.Unlock()
		return true
	}

	var (
		d      Descriptor
		picked bool
	)
	if c.tracked != nil {
		d = Describe(c.doc, c.tracked)
		picked = true
	}
	c.finishLocked()
	c.mu.Unlock()

	if !picked {
		c.logger.Debug("picker: click without tracked element")
		return true
	}
	c.logger.Debug("picker: element picked", "tag", d.TagName, "xpath", d.XPath)
	if c.onPick != nil {
		c.onPick(d)
	}
	return true
}

// KeyDown cancels picking on Escape.
func (c *Controller) KeyDown(key string) {
	if key == EscapeKey {
		c.StopPicking()
	}
}

// Abandon leaves Picking without touching the document. Hosts call it when
// the page was replaced under the controller (a reload or a script-driven
// navigation): the overlay went away with the old document and its handle
// may now designate an unrelated node. Reports whether picking was active.
func (c *Controller) Abandon() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Picking {
		return false
	}
	c.overlay = nil
	c.tracked = nil
	c.state = Idle
	c.logger.Debug("picker: picking abandoned, document replaced")
	return true
}

// Close force-stops picking. Hosts call it when the page goes away.
func (c *Controller) Close() {
	c.StopPicking()
}

// finishLocked ends Picking and removes the overlay. Every exit except
// Abandon goes through here.
func (c *Controller) finishLocked() {
	if c.overlay != nil {
		c.overlay.remove()
		c.overlay = nil
	}
	c.tracked = nil
	c.state = Idle
}
