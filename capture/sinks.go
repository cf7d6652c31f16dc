package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/devlens/capture/internal/sink"
	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/guard"
)

// Sink is the output interface for capture events.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry. A non-empty apiKey
// is sent as a Bearer token.
func NewWebhookSink(url, apiKey string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookAPIKey(apiKey), sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn func(ctx context.Context, env event.Envelope) error) Sink {
	return sink.NewCallback(fn)
}

// SinksFromConfig builds the sinks listed in cfg. Webhook targets are
// checked against private addresses unless allow_private is set.
func SinksFromConfig(cfg *Config, w io.Writer, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for i, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			out = append(out, NewStdoutSink(w))
		case "webhook":
			if err := guard.WebhookURL(sc.URL, sc.AllowPrivate); err != nil {
				return nil, fmt.Errorf("capture: sinks[%d]: %w", i, err)
			}
			out = append(out, NewWebhookSink(sc.URL, sc.APIKey, logger))
		default:
			return nil, fmt.Errorf("capture: sinks[%d]: unknown type %q", i, sc.Type)
		}
	}
	return out, nil
}
