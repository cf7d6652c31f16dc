package rodpage

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/devlens/picker"
)

const fixturePage = `<!DOCTYPE html>
<html><head><style>
body { margin: 0; font-family: Inter; }
.item { height: 20px; width: 100px; }
</style></head><body>
<section class="list">
  <div class="item">one</div>
  <div class="item">two</div>
  <div class="item" onclick="window.clicked = true">three</div>
</section>
<button id="buy" style="position: absolute; top: 200px; left: 10px; width: 80px; height: 30px">Buy</button>
</body></html>`

func openFixture(t *testing.T) *rod.Page {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("chrome not installed")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(fixturePage))
	}))
	t.Cleanup(srv.Close)

	l := launcher.New().Bin(bin).Headless(true)
	u, err := l.Launch()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Cleanup)

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })

	page, err := b.Page(proto.TargetCreateTarget{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := page.Timeout(10 * time.Second).WaitLoad(); err != nil {
		t.Fatal(err)
	}
	return page
}

func TestDocument_Describe(t *testing.T) {
	page := openFixture(t)
	doc, err := New(page)
	if err != nil {
		t.Fatal(err)
	}

	third := doc.ElementAt(10, 45)
	if third == nil {
		t.Fatal("no element at (10, 45)")
	}
	if again := doc.ElementAt(20, 50); again != third {
		t.Fatalf("handles differ for the same node: %v vs %v", again, third)
	}

	d := picker.Describe(doc, third)
	if d.XPath != "/html/body/section/div[3]" {
		t.Fatalf("xpath = %q", d.XPath)
	}
	if d.Text() != "three" || d.ComputedStyles.FontFamily != "Inter" {
		t.Fatalf("descriptor = %+v", d)
	}

	buy := picker.Describe(doc, doc.ElementAt(20, 210))
	if buy.XPath != `//*[@id="buy"]` || buy.Rect.Width != 80 || buy.ComputedStyles.Position != "absolute" {
		t.Fatalf("button descriptor = %+v", buy)
	}
}

func TestBridge_ClickIsSwallowedWhilePicking(t *testing.T) {
	page := openFixture(t)
	doc, err := New(page)
	if err != nil {
		t.Fatal(err)
	}

	picked := make(chan picker.Descriptor, 1)
	ctrl := picker.New(picker.Config{Document: doc, OnPick: func(d picker.Descriptor) { picked <- d }})
	bridge, err := NewBridge(doc, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	defer bridge.Close()

	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	if err := page.Mouse.MoveTo(proto.Point{X: 10, Y: 45}); err != nil {
		t.Fatal(err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-picked:
		if d.XPath != "/html/body/section/div[3]" {
			t.Fatalf("picked %q", d.XPath)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no pick delivered")
	}

	res, err := page.Eval(`() => window.clicked === true`)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value.Bool() {
		t.Fatal("page handler saw the picking click")
	}
	has, _, err := page.Has("#" + picker.OverlayID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("overlay left mounted after pick")
	}
}

func TestBridge_DetachAfterReload(t *testing.T) {
	page := openFixture(t)
	doc, err := New(page)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := picker.New(picker.Config{Document: doc, OnPick: func(picker.Descriptor) {}})
	bridge, err := NewBridge(doc, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	defer bridge.Close()

	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	if err := page.Reload(); err != nil {
		t.Fatal(err)
	}
	if err := page.Timeout(10 * time.Second).WaitLoad(); err != nil {
		t.Fatal(err)
	}

	if !bridge.Detach() {
		t.Fatal("Detach reported no active picking")
	}
	if ctrl.State() != picker.Idle {
		t.Fatalf("state = %v, want idle", ctrl.State())
	}

	// The reloaded page is not intercepted: its own click handler runs.
	if err := page.Mouse.MoveTo(proto.Point{X: 10, Y: 45}); err != nil {
		t.Fatal(err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		t.Fatal(err)
	}
	res, err := page.Eval(`() => window.clicked === true`)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Value.Bool() {
		t.Fatal("click on the reloaded page was swallowed")
	}

	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	has, _, err := page.Has("#" + picker.OverlayID)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("overlay not mounted on the reloaded page")
	}
	bridge.Stop()
}
