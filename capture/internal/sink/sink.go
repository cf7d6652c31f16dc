// Package sink defines output backends for capture events.
package sink

import (
	"context"

	"github.com/hazyhaar/devlens/event"
)

// Sink is the output interface. Implementations deliver envelopes to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, env event.Envelope) error
	Close() error
}
