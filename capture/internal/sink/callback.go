package sink

import (
	"context"

	"github.com/hazyhaar/devlens/event"
)

// Func is called for each envelope.
type Func func(ctx context.Context, env event.Envelope) error

// Callback delivers envelopes as in-process function calls, for embedders
// that run the capture host inside their own binary.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, env event.Envelope) error {
	if c.fn != nil {
		return c.fn(ctx, env)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
