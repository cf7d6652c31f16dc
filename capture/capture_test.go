package capture

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/guard"
	"github.com/hazyhaar/devlens/picker"
)

func TestSinksFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks = []SinkConfig{
		{Type: "stdout"},
		{Type: "webhook", URL: "http://127.0.0.1:9/hook", AllowPrivate: true},
	}
	sinks, err := SinksFromConfig(cfg, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 2 {
		t.Fatalf("sinks = %d, want 2", len(sinks))
	}

	cfg.Sinks = []SinkConfig{{Type: "webhook", URL: "http://10.0.0.8/hook"}}
	if _, err := SinksFromConfig(cfg, nil, nil); !errors.Is(err, guard.ErrPrivateTarget) {
		t.Fatalf("err = %v, want private target", err)
	}

	cfg.Sinks = []SinkConfig{{Type: "webhook", URL: "file:///etc/passwd"}}
	if _, err := SinksFromConfig(cfg, nil, nil); !errors.Is(err, guard.ErrUnsafeScheme) {
		t.Fatalf("err = %v, want unsafe scheme", err)
	}
}

func TestCapture_EmitFansOut(t *testing.T) {
	var buf bytes.Buffer
	var got []string
	c := New(nil, nil,
		NewStdoutSink(&buf),
		NewCallbackSink(func(_ context.Context, env event.Envelope) error {
			got = append(got, env.Type)
			return nil
		}),
	)
	defer c.Close()

	if err := c.Emit(context.Background(), event.New(event.TypeConsoleErrors, []event.ConsoleError{})); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !strings.Contains(buf.String(), `"type":"console_errors"`) {
		t.Fatalf("callback=%v stdout=%q", got, buf.String())
	}
}

func TestCapture_OpenRejectsBadURL(t *testing.T) {
	c := New(nil, nil)
	defer c.Close()
	if _, err := c.Open(context.Background(), "javascript:alert(1)"); !errors.Is(err, guard.ErrUnsafeScheme) {
		t.Fatalf("err = %v", err)
	}
}

const sessionPage = `<!DOCTYPE html><html><head><title>Checkout</title></head>
<body style="margin: 0">
<div id="total" style="height: 40px">Total: 12.00</div>
<script>console.error("price mismatch"); console.warn("slow"); console.log("noise");</script>
</body></html>`

func TestSession_FeedbackFromLivePage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("chrome not installed")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(sessionPage))
	}))
	defer srv.Close()

	var envs []event.Envelope
	cfg := DefaultConfig()
	cfg.Browser.Headless = true
	cfg.Browser.Bin = bin
	c := New(cfg, nil, NewCallbackSink(func(_ context.Context, env event.Envelope) error {
		envs = append(envs, env)
		return nil
	}))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s, err := c.Open(ctx, srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	// Reload so the console listener sees the inline script run.
	if err := s.Navigate(ctx, srv.URL); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(s.ConsoleErrors()) < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	fb, err := s.Feedback(ctx, "total is wrong")
	if err != nil {
		t.Fatal(err)
	}
	if fb.PageTitle != "Checkout" || fb.Description != "total is wrong" {
		t.Fatalf("feedback = %+v", fb)
	}
	if !strings.HasPrefix(fb.Screenshot, "data:image/png;base64,") {
		t.Fatal("screenshot is not a PNG data URL")
	}
	if len(fb.ConsoleErrors) != 2 || fb.ConsoleErrors[0].Message != "price mismatch" || fb.ConsoleErrors[1].Type != event.LevelWarn {
		t.Fatalf("console = %+v", fb.ConsoleErrors)
	}
	if len(envs) == 0 || envs[len(envs)-1].Type != event.TypeFeedback {
		t.Fatalf("envelopes = %+v", envs)
	}
}

func TestSession_PickEndsWhenPageNavigates(t *testing.T) {
	// WHAT: A reload started by the page itself ends Pick with ErrNavigated.
	// WHY: The new document's listeners forward nothing, so Pick would otherwise block forever.
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("chrome not installed")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(sessionPage))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Browser.Headless = true
	cfg.Browser.Bin = bin
	c := New(cfg, nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s, err := c.Open(ctx, srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Pick(ctx)
		errc <- err
	}()
	deadline := time.Now().Add(5 * time.Second)
	for s.ctrl.State() != picker.Picking && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := s.tab.Page.Eval(`() => setTimeout(() => location.reload(), 50)`); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrNavigated) {
			t.Fatalf("Pick err = %v, want ErrNavigated", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Pick still blocked after the page reloaded")
	}
	if s.ctrl.State() != picker.Idle {
		t.Fatalf("controller state = %v, want idle", s.ctrl.State())
	}

	// Picking starts cleanly on the new document.
	if err := s.tab.Page.Timeout(10 * time.Second).WaitLoad(); err != nil {
		t.Fatal(err)
	}
	go func() {
		_, err := s.Pick(ctx)
		errc <- err
	}()
	deadline = time.Now().Add(5 * time.Second)
	for s.ctrl.State() != picker.Picking && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if err := s.tab.Page.Mouse.MoveTo(proto.Point{X: 10, Y: 10}); err != nil {
		t.Fatal(err)
	}
	if err := s.tab.Page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no pick after navigation")
	}
	if d, ok := s.Picked(); !ok || d.ID != "total" {
		t.Fatalf("picked = %+v", d)
	}
}
