package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// TabOptions tunes a new tab.
type TabOptions struct {
	Width, Height   int
	NavigateTimeout time.Duration
}

// Tab wraps a Rod page opened for a capture session.
type Tab struct {
	Page    *rod.Page
	PageURL string
	logger  *slog.Logger
}

// OpenTab creates a new tab, applies stealth, viewport and resource
// blocking, then navigates to pageURL and waits for the load event.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, opts TabOptions) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}

	var page *rod.Page
	var err error

	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if opts.Width > 0 && opts.Height > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: 1,
		}).Call(page); err != nil {
			mgr.cfg.Logger.Warn("browser: set viewport failed", "error", err)
		}
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}

	tab := &Tab{Page: page, logger: mgr.cfg.Logger}
	if err := tab.Navigate(ctx, pageURL, opts.NavigateTimeout); err != nil {
		page.Close()
		return nil, err
	}
	return tab, nil
}

// Navigate loads pageURL in the tab. A load timeout is logged, not
// returned: pages with long-polling assets are still usable.
func (t *Tab) Navigate(ctx context.Context, pageURL string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	t.PageURL = pageURL
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
