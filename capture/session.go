package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/devlens/capture/internal/browser"
	"github.com/hazyhaar/devlens/capture/internal/console"
	"github.com/hazyhaar/devlens/capture/internal/rodpage"
	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/picker"
)

var (
	// ErrCancelled is returned by Pick when the user presses Escape.
	ErrCancelled = errors.New("capture: picking cancelled")
	// ErrNavigated is returned by Pick when the page loaded another document
	// (reload, redirect, script navigation) while picking.
	ErrNavigated = errors.New("capture: page navigated while picking")
)

// Session is one tab prepared for picking.
type Session struct {
	cap     *Capture
	tab     *browser.Tab
	doc     *rodpage.Document
	ctrl    *picker.Controller
	bridge  *rodpage.Bridge
	console *console.Buffer
	logger  *slog.Logger

	picks     chan picker.Descriptor
	cancelled chan struct{}
	navigated chan struct{}
	stop      context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	last   *picker.Descriptor
	closed bool
}

func newSession(c *Capture, tab *browser.Tab) (*Session, error) {
	doc, err := rodpage.New(tab.Page, rodpage.WithLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	s := &Session{
		cap:       c,
		tab:       tab,
		doc:       doc,
		console:   console.NewBuffer(c.cfg.Console.MaxEntries, c.cfg.Console.Levels...),
		logger:    c.logger.With("url", tab.PageURL),
		picks:     make(chan picker.Descriptor, 1),
		cancelled: make(chan struct{}, 1),
		navigated: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.ctrl = picker.New(picker.Config{Document: doc, OnPick: s.onPick, Logger: c.logger})

	s.bridge, err = rodpage.NewBridge(doc, s.ctrl)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	s.bridge.OnCancel(func() {
		select {
		case s.cancelled <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.watchConsole(ctx)
	return s, nil
}

// onPick runs on the bridge goroutine; the descriptor is handed over to
// Pick without blocking it.
func (s *Session) onPick(d picker.Descriptor) {
	s.mu.Lock()
	s.last = &d
	s.mu.Unlock()
	select {
	case s.picks <- d:
	default:
		s.logger.Debug("capture: pick dropped, nobody waiting")
	}
}

func (s *Session) watchConsole(ctx context.Context) {
	defer close(s.done)
	wait := s.tab.Page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			if e, ok := console.FromConsoleAPI(ev); ok {
				s.console.Add(e)
			}
		},
		func(ev *proto.RuntimeExceptionThrown) {
			s.console.Add(console.FromException(ev))
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame != nil && ev.Frame.ParentID == "" {
				s.console.Clear()
				s.documentReplaced()
			}
		},
	)
	wait()
}

// documentReplaced ends a picking session whose document is gone; the new
// document's listeners forward nothing until picking starts again.
func (s *Session) documentReplaced() {
	if !s.bridge.Detach() {
		return
	}
	s.logger.Info("capture: page navigated, picking stopped")
	select {
	case s.navigated <- struct{}{}:
	default:
	}
}

// URL returns the address the tab was last navigated to.
func (s *Session) URL() string { return s.tab.PageURL }

// Navigate loads another page in the same tab. Console entries are cleared
// by the navigation itself.
func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	s.bridge.Stop()
	if err := s.tab.Navigate(ctx, pageURL, s.cap.cfg.Page.NavigateTimeout); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// Pick enters picking mode and blocks until the user confirms an element,
// presses Escape (ErrCancelled), the page loads another document
// (ErrNavigated) or ctx ends. The descriptor is emitted as an
// element_picked event.
func (s *Session) Pick(ctx context.Context) (picker.Descriptor, error) {
	select {
	case <-s.picks:
	default:
	}
	select {
	case <-s.cancelled:
	default:
	}
	select {
	case <-s.navigated:
	default:
	}

	if err := s.bridge.Start(); err != nil {
		return picker.Descriptor{}, fmt.Errorf("capture: start picking: %w", err)
	}

	select {
	case d := <-s.picks:
		env := event.New(event.TypeElementPicked, event.ElementPicked{PageURL: s.URL(), Element: d})
		if err := s.cap.Emit(ctx, env); err != nil {
			s.logger.Warn("capture: emit pick", "error", err)
		}
		return d, nil
	case <-s.cancelled:
		return picker.Descriptor{}, ErrCancelled
	case <-s.navigated:
		return picker.Descriptor{}, ErrNavigated
	case <-ctx.Done():
		s.bridge.Stop()
		return picker.Descriptor{}, ctx.Err()
	}
}

// Picked returns the last confirmed descriptor, if any.
func (s *Session) Picked() (picker.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return picker.Descriptor{}, false
	}
	return *s.last, true
}

// ConsoleErrors returns the buffered console entries, oldest first.
func (s *Session) ConsoleErrors() []event.ConsoleError {
	return s.console.Snapshot()
}

// EmitConsoleErrors sends the buffered entries as one console_errors event.
// Nothing is sent when the buffer is empty.
func (s *Session) EmitConsoleErrors(ctx context.Context) error {
	errs := s.console.Snapshot()
	if len(errs) == 0 {
		return nil
	}
	return s.cap.Emit(ctx, event.New(event.TypeConsoleErrors, errs))
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	img, err := s.tab.Page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}
	return img, nil
}

// Feedback assembles a report for the current page: screenshot, console
// errors, browser details and the last picked element, with comment as the
// description. The report is emitted as a feedback event.
func (s *Session) Feedback(ctx context.Context, comment string) (event.Feedback, error) {
	info, err := s.doc.Info()
	if err != nil {
		return event.Feedback{}, fmt.Errorf("capture: %w", err)
	}
	img, err := s.Screenshot(ctx)
	if err != nil {
		return event.Feedback{}, err
	}

	fb := event.Feedback{
		PageURL:       info.URL,
		PageTitle:     info.Title,
		Description:   comment,
		Screenshot:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
		ConsoleErrors: s.console.Snapshot(),
		BrowserInfo: event.BrowserInfo{
			UserAgent: info.UserAgent,
			Viewport:  event.Viewport{Width: info.Width, Height: info.Height},
			Language:  info.Language,
			Platform:  info.Platform,
		},
		CapturedAt: time.Now().UTC(),
	}
	if d, ok := s.Picked(); ok {
		fb.WithElement(d)
	}
	if fb.ConsoleErrors == nil {
		fb.ConsoleErrors = []event.ConsoleError{}
	}

	if err := s.cap.Emit(ctx, event.New(event.TypeFeedback, fb)); err != nil {
		s.logger.Warn("capture: emit feedback", "error", err)
	}
	return fb, nil
}

// Close stops picking, detaches the bridge and closes the tab.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.ctrl.Close()
	if err := s.bridge.Close(); err != nil {
		s.logger.Debug("capture: close bridge", "error", err)
	}
	s.stop()
	<-s.done
	s.cap.forget(s)
	return s.tab.Close()
}
