package rodpage

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ysmood/gson"

	"github.com/hazyhaar/devlens/picker"
)

// bindingName is the window property the listener script calls.
const bindingName = "__devlensEmit"

// Bridge forwards page input events to a Controller and mirrors the
// controller state into the page-side picking flag, which decides whether
// the listeners swallow clicks.
type Bridge struct {
	doc    *Document
	ctrl   *picker.Controller
	logger *slog.Logger

	mu       sync.Mutex
	stop     func() error
	remove   func() error
	onCancel func()
}

// OnCancel registers fn to run when the user leaves picking with Escape.
func (b *Bridge) OnCancel(fn func()) {
	b.mu.Lock()
	b.onCancel = fn
	b.mu.Unlock()
}

// NewBridge wires doc's page to ctrl. Call Start to begin picking.
func NewBridge(doc *Document, ctrl *picker.Controller) (*Bridge, error) {
	b := &Bridge{doc: doc, ctrl: ctrl, logger: doc.logger}
	page := doc.page

	stop, err := page.Expose(bindingName, b.handle)
	if err != nil {
		return nil, fmt.Errorf("rodpage: expose binding: %w", err)
	}
	b.stop = stop

	js := fmt.Sprintf("(%s)(%q)", listenerJS, bindingName)
	remove, err := page.EvalOnNewDocument(js)
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("rodpage: install listeners: %w", err)
	}
	b.remove = remove
	if _, err := doc.eval(listenerJS, bindingName); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("rodpage: install listeners: %w", err)
	}
	return b, nil
}

// inputEvent is the payload sent by the listener script.
type inputEvent struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	Key    string  `json:"key"`
}

func (b *Bridge) handle(payload gson.JSON) (any, error) {
	var ev inputEvent
	if err := decode(payload, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case "move":
		b.ctrl.PointerMove(ev.X, ev.Y)
	case "click":
		suppress := b.ctrl.Click(picker.Button(ev.Button))
		b.sync()
		return suppress, nil
	case "key":
		was := b.ctrl.State()
		b.ctrl.KeyDown(ev.Key)
		b.sync()
		if was == picker.Picking && b.ctrl.State() == picker.Idle {
			b.mu.Lock()
			fn := b.onCancel
			b.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	default:
		b.logger.Debug("rodpage: unknown input event", "type", ev.Type)
	}
	return nil, nil
}

// Start enters picking mode on both sides.
func (b *Bridge) Start() error {
	if err := b.ctrl.StartPicking(); err != nil {
		return err
	}
	b.sync()
	return nil
}

// Stop cancels picking.
func (b *Bridge) Stop() {
	b.ctrl.StopPicking()
	b.sync()
}

// Detach drops picking after the main frame loaded a new document. The new
// document starts with the picking flag off, so it is not written again.
// Reports whether picking was active.
func (b *Bridge) Detach() bool {
	return b.ctrl.Abandon()
}

// sync copies the controller state into the page flag.
func (b *Bridge) sync() {
	picking := b.ctrl.State() == picker.Picking
	if _, err := b.doc.eval(pickingJS, picking); err != nil {
		b.logger.Warn("rodpage: sync picking flag", "picking", picking, "error", err)
	}
}

// Close removes the binding and the listener script from future documents.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	if b.remove != nil {
		firstErr = b.remove()
		b.remove = nil
	}
	if b.stop != nil {
		if err := b.stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.stop = nil
	}
	return firstErr
}
