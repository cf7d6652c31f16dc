// Package capture drives a Chrome tab for DevLens bug reports. It opens the
// page under test, lets a person pick an element with the picker overlay,
// records console errors, takes screenshots and assembles feedback.
//
// Events (picked elements, console errors, feedback) are emitted to sinks
// (stdout, webhook, callback) for consumers like the dashboard to store.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/devlens/capture/internal/browser"
	"github.com/hazyhaar/devlens/capture/internal/sink"
	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/guard"
)

// Capture is the top-level orchestrator. It owns the browser, the open
// sessions and the sink router.
type Capture struct {
	cfg      *Config
	mgr      *browser.Manager
	sinkR    *sink.Router
	logger   *slog.Logger
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// New creates a Capture from configuration. A nil cfg uses DefaultConfig.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headless:         cfg.Browser.Headless,
		Bin:              cfg.Browser.Bin,
		Stealth:          cfg.Browser.Stealth,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})

	return &Capture{
		cfg:      cfg,
		mgr:      mgr,
		sinkR:    sink.NewRouter(logger, sinks...),
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Start launches or connects to the browser.
func (c *Capture) Start(ctx context.Context) error {
	if _, err := c.mgr.Start(ctx); err != nil {
		return fmt.Errorf("capture: start browser: %w", err)
	}
	return nil
}

// Open opens pageURL in a new tab and prepares it for picking. An empty
// pageURL uses the configured page.
func (c *Capture) Open(ctx context.Context, pageURL string) (*Session, error) {
	if pageURL == "" {
		pageURL = c.cfg.Page.URL
	}
	if _, err := guard.PageURL(pageURL); err != nil {
		return nil, fmt.Errorf("capture: open: %w", err)
	}

	tab, err := browser.OpenTab(ctx, c.mgr, pageURL, browser.TabOptions{
		Width:           c.cfg.Page.Viewport.Width,
		Height:          c.cfg.Page.Viewport.Height,
		NavigateTimeout: c.cfg.Page.NavigateTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: open tab: %w", err)
	}

	s, err := newSession(c, tab)
	if err != nil {
		tab.Close()
		return nil, err
	}

	c.mu.Lock()
	c.sessions[s] = struct{}{}
	c.mu.Unlock()

	c.logger.Info("capture: session opened", "url", pageURL)
	return s, nil
}

// Emit sends an envelope to every sink.
func (c *Capture) Emit(ctx context.Context, env event.Envelope) error {
	return c.sinkR.Send(ctx, env)
}

func (c *Capture) forget(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s)
	c.mu.Unlock()
}

// Close ends all sessions, closes the sinks and shuts the browser down.
func (c *Capture) Close() error {
	c.mu.Lock()
	open := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		open = append(open, s)
	}
	c.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	if err := c.sinkR.Close(); err != nil {
		c.logger.Warn("capture: close sinks", "error", err)
	}
	return c.mgr.Close()
}
