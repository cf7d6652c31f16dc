package dashboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/devlens/auth"
	"github.com/hazyhaar/devlens/dbopen"
	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/picker"
	"github.com/hazyhaar/devlens/shield"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func setupTestService(t *testing.T, tweak ...func(*Config)) *Service {
	t.Helper()
	cfg := Config{BaseURL: "http://devlens.test", Secret: testSecret}
	for _, fn := range tweak {
		fn(&cfg)
	}
	svc, err := New(dbopen.OpenMemory(t), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func registerUser(t *testing.T, svc *Service, email string) *User {
	t.Helper()
	u, err := svc.Register(context.Background(), email, "correct horse", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

type call struct {
	method string
	path   string
	body   any
	bearer string
	apiKey string
	cookie *http.Cookie
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func report(t *testing.T, pageURL, desc string) SubmitRequest {
	t.Helper()
	text := "Buy"
	return SubmitRequest{Feedback: event.Feedback{
		PageURL:     pageURL,
		PageTitle:   "Shop",
		Description: desc,
		Screenshot:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t)),
		Element: &picker.Descriptor{
			TagName: "button", ID: "buy", XPath: `//*[@id="buy"]`, InnerText: &text,
			Rect: picker.Rect{X: 10, Y: 120, Width: 80, Height: 30, Top: 20, Left: 10, Right: 90, Bottom: 50},
		},
		ConsoleErrors: []event.ConsoleError{{Type: "error", Message: "boom", Source: "app.js", Line: 3, Column: 7}},
		BrowserInfo:   event.BrowserInfo{UserAgent: "test", Viewport: event.Viewport{Width: 1280, Height: 720}},
	}}
}

type projectResp struct {
	Project Project `json:"project"`
}

type feedbackResp struct {
	Feedback Feedback `json:"feedback"`
}

func createProject(t *testing.T, h http.Handler, key, name string, domains ...string) Project {
	t.Helper()
	rec := do(t, h, call{method: "POST", path: "/api/projects", bearer: key, body: ProjectInput{Name: name, Domains: domains}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rec.Code, rec.Body.String())
	}
	return decode[projectResp](t, rec).Project
}

func TestNew_NilDB(t *testing.T) {
	if _, err := New(nil, Config{}, nil); err == nil || !strings.Contains(err.Error(), "DB is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestNew_ShortSecret(t *testing.T) {
	if _, err := New(dbopen.OpenMemory(t), Config{Secret: []byte("short")}, nil); err == nil {
		t.Fatal("short secret accepted")
	}
}

func TestHealth(t *testing.T) {
	h := setupTestService(t).Handler()
	rec := do(t, h, call{method: "GET", path: "/health"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuth_RegisterLoginSession(t *testing.T) {
	// WHAT: Registration returns a user key and a session cookie that both authenticate.
	// WHY: The extension uses the key; the dashboard UI uses the cookie.
	h := setupTestService(t).Handler()

	rec := do(t, h, call{method: "POST", path: "/api/auth/register", body: credentials{Email: "Ada@Example.com", Password: "correct horse"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("no session cookie")
	}
	u := decode[struct{ User User }](t, rec).User
	if u.Email != "ada@example.com" || !strings.HasPrefix(u.APIKey, "devlens_") || u.Tier != TierFree {
		t.Fatalf("user = %+v", u)
	}

	if rec := do(t, h, call{method: "POST", path: "/api/auth/register", body: credentials{Email: "ada@example.com", Password: "another pass"}}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "POST", path: "/api/auth/register", body: credentials{Email: "bob@example.com", Password: "short"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short password: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "POST", path: "/api/auth/login", body: credentials{Email: "ada@example.com", Password: "wrong password"}}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "POST", path: "/api/auth/login", body: credentials{Email: "ADA@example.com", Password: "correct horse"}}); rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}

	for name, c := range map[string]call{
		"cookie": {method: "GET", path: "/api/auth/me", cookie: session},
		"key":    {method: "GET", path: "/api/auth/me", bearer: u.APIKey},
	} {
		rec := do(t, h, c)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", name, rec.Code)
		}
		if got := decode[struct{ User User }](t, rec).User.ID; got != u.ID {
			t.Fatalf("%s: user %q, want %q", name, got, u.ID)
		}
	}

	rec = do(t, h, call{method: "GET", path: "/api/auth/me"})
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Unauthorized") {
		t.Fatalf("anonymous: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuth_RotateKey(t *testing.T) {
	svc := setupTestService(t)
	h := svc.Handler()
	u := registerUser(t, svc, "ada@example.com")

	rec := do(t, h, call{method: "POST", path: "/api/auth/key", bearer: u.APIKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate: %d", rec.Code)
	}
	fresh := decode[struct{ User User }](t, rec).User.APIKey
	if fresh == u.APIKey {
		t.Fatal("key not rotated")
	}
	if rec := do(t, h, call{method: "GET", path: "/api/auth/me", bearer: u.APIKey}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("old key still works: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "GET", path: "/api/auth/me", bearer: fresh}); rec.Code != http.StatusOK {
		t.Fatalf("new key rejected: %d", rec.Code)
	}
}

func TestRegistrationDisabled(t *testing.T) {
	h := setupTestService(t, func(c *Config) { c.DisableRegistration = true }).Handler()
	rec := do(t, h, call{method: "POST", path: "/api/auth/register", body: credentials{Email: "a@b.co", Password: "long enough"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestProjects_LimitAndCRUD(t *testing.T) {
	// WHAT: Tier limits, partial updates, key regeneration and ownership checks.
	// WHY: Projects gate routing and submission keys.
	svc := setupTestService(t)
	h := svc.Handler()
	ctx := context.Background()
	ada := registerUser(t, svc, "ada@example.com")
	bob := registerUser(t, svc, "bob@example.com")

	p := createProject(t, h, ada.APIKey, "Shop", " LocalHost:3000 ", "", "localhost:3000")
	if diff := cmp.Diff([]string{"localhost:3000"}, p.Domains); diff != "" {
		t.Fatalf("domains not cleaned (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(p.APIKey, "proj_") || !p.IsActive {
		t.Fatalf("project = %+v", p)
	}

	rec := do(t, h, call{method: "POST", path: "/api/projects", bearer: ada.APIKey, body: ProjectInput{Name: "Second"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("over limit: %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["error"] != "Project limit reached. Upgrade to create more projects." || body["limit"] != float64(1) {
		t.Fatalf("limit body = %v", body)
	}

	if err := svc.SetTier(ctx, "ada@example.com", TierPro); err != nil {
		t.Fatal(err)
	}
	createProject(t, h, ada.APIKey, "Second")

	if rec := do(t, h, call{method: "POST", path: "/api/projects", bearer: ada.APIKey, body: ProjectInput{Name: strings.Repeat("x", 101)}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("long name: %d", rec.Code)
	}

	rec = do(t, h, call{method: "PUT", path: "/api/projects/" + p.ID, bearer: ada.APIKey,
		body: map[string]any{"name": "Renamed", "regenerateApiKey": true, "isActive": false}})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	up := decode[projectResp](t, rec).Project
	if up.Name != "Renamed" || up.APIKey == p.APIKey || up.IsActive {
		t.Fatalf("after update: %+v", up)
	}
	if diff := cmp.Diff(p.Domains, up.Domains); diff != "" {
		t.Fatalf("domains changed by partial update:\n%s", diff)
	}

	if rec := do(t, h, call{method: "GET", path: "/api/projects/" + p.ID, bearer: bob.APIKey}); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign project: %d", rec.Code)
	}

	rec = do(t, h, call{method: "GET", path: "/api/projects", bearer: ada.APIKey})
	if n := len(decode[struct{ Projects []Project }](t, rec).Projects); n != 2 {
		t.Fatalf("projects = %d", n)
	}

	if rec := do(t, h, call{method: "DELETE", path: "/api/projects/" + p.ID, bearer: ada.APIKey}); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "DELETE", path: "/api/projects/" + p.ID, bearer: ada.APIKey}); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}

func TestSubmit_ProjectResolution(t *testing.T) {
	// WHAT: Project key, then explicit projectId, then domain routing, else 422.
	// WHY: This order decides where every report lands.
	svc := setupTestService(t, func(c *Config) { c.Tiers = map[string]Limits{TierFree: {Projects: 5, FeedbackPerMonth: 100}} })
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	local := createProject(t, h, ada.APIKey, "Local", "localhost:3000")
	shop := createProject(t, h, ada.APIKey, "Shop", "*.example.com")

	submit := func(c call) Feedback {
		t.Helper()
		c.method, c.path = "POST", "/api/feedback"
		rec := do(t, h, c)
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
		}
		return decode[feedbackResp](t, rec).Feedback
	}

	byDomain := submit(call{bearer: ada.APIKey, body: report(t, "https://app.example.com/cart", "broken")})
	if byDomain.ProjectID != shop.ID || byDomain.Project == nil || byDomain.Project.Name != "Shop" {
		t.Fatalf("domain routing: %+v", byDomain)
	}

	explicit := report(t, "https://app.example.com/cart", "broken")
	explicit.ProjectID = local.ID
	if got := submit(call{bearer: ada.APIKey, body: explicit}); got.ProjectID != local.ID {
		t.Fatalf("explicit project: %s", got.ProjectID)
	}

	if got := submit(call{apiKey: local.APIKey, body: report(t, "https://app.example.com/", "via key")}); got.ProjectID != local.ID {
		t.Fatalf("project key: %s", got.ProjectID)
	}

	rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "https://other.org/", "lost")})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unrouted: %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, h, call{method: "GET", path: "/api/feedback", apiKey: local.APIKey}); rec.Code != http.StatusForbidden {
		t.Fatalf("project key listing: %d", rec.Code)
	}

	if rec := do(t, h, call{method: "POST", path: "/api/feedback", body: report(t, "https://app.example.com/", "anon")}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous submit: %d", rec.Code)
	}
}

func TestSubmit_StoredFields(t *testing.T) {
	svc := setupTestService(t)
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")

	req := report(t, "http://localhost:3000/checkout", `<p>Button <b>does nothing</b></p><script>alert(1)</script>`)
	rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: req})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	f := decode[feedbackResp](t, rec).Feedback

	if strings.Contains(f.Description, "script") || !strings.Contains(f.Description, "<b>does nothing</b>") {
		t.Fatalf("description not sanitised: %q", f.Description)
	}
	if f.Status != StatusPending || f.Priority != PriorityMedium || f.ResolvedAt != nil {
		t.Fatalf("defaults: %+v", f)
	}
	if f.ElementSelector != `//*[@id="buy"]` || f.ElementTagName != "button" {
		t.Fatalf("element fields: %q %q", f.ElementSelector, f.ElementTagName)
	}
	if diff := cmp.Diff(&Box{X: 10, Y: 20, Width: 80, Height: 30}, f.ElementBoundingBox); diff != "" {
		t.Fatalf("box (-want +got):\n%s", diff)
	}
	if f.ScreenshotURL != "http://devlens.test/api/feedback/"+f.ID+"/screenshot" {
		t.Fatalf("screenshot url %q", f.ScreenshotURL)
	}
	if len(f.ConsoleErrors) != 1 || f.ConsoleErrors[0].Message != "boom" || f.ConsoleErrors[0].Line != 3 {
		t.Fatalf("console errors: %+v", f.ConsoleErrors)
	}
	if f.BrowserInfo.Viewport.Width != 1280 {
		t.Fatalf("browser info: %+v", f.BrowserInfo)
	}

	rec = do(t, h, call{method: "GET", path: "/api/feedback/" + f.ID, bearer: ada.APIKey})
	got := decode[feedbackResp](t, rec).Feedback
	if diff := cmp.Diff(f, got); diff != "" {
		t.Fatalf("read back (-submitted +stored):\n%s", diff)
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := setupTestService(t)
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")

	tests := []struct {
		name   string
		modify func(*SubmitRequest)
	}{
		{"script url", func(r *SubmitRequest) { r.PageURL = "javascript:alert(1)" }},
		{"relative url", func(r *SubmitRequest) { r.PageURL = "/checkout" }},
		{"empty description", func(r *SubmitRequest) { r.Description = "   " }},
		{"only markup", func(r *SubmitRequest) { r.Description = "<script>x()</script>" }},
		{"missing screenshot", func(r *SubmitRequest) { r.Screenshot = "" }},
		{"not a data url", func(r *SubmitRequest) { r.Screenshot = "https://cdn/x.png" }},
		{"wrong type", func(r *SubmitRequest) { r.Screenshot = "data:text/html;base64,PGgxPg==" }},
		{"mislabelled", func(r *SubmitRequest) { r.Screenshot = "data:image/png;base64,aGVsbG8=" }},
		{"console type", func(r *SubmitRequest) { r.ConsoleErrors[0].Type = "fatal" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := report(t, "http://localhost:3000/", "ok")
			tt.modify(&req)
			rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: req})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got %d %s", rec.Code, rec.Body.String())
			}
			if body := decode[map[string]string](t, rec); body["error"] != "Invalid request data" {
				t.Fatalf("body = %v", body)
			}
		})
	}

	rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: "not an object"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func TestSubmit_MonthlyQuota(t *testing.T) {
	// WHAT: The tier's monthly quota answers 403 with the limit.
	// WHY: Free accounts are capped per calendar month.
	svc := setupTestService(t, func(c *Config) { c.Tiers = map[string]Limits{TierFree: {Projects: 1, FeedbackPerMonth: 2}} })
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")

	for i := 0; i < 2; i++ {
		rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit %d: %d", i, rec.Code)
		}
	}
	rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("over quota: %d", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["limit"] != float64(2) {
		t.Fatalf("body = %v", body)
	}

	// A new month resets the count.
	svc.now = func() time.Time { return time.Now().AddDate(0, 1, 0) }
	if rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")}); rec.Code != http.StatusCreated {
		t.Fatalf("next month: %d", rec.Code)
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	svc := setupTestService(t, func(c *Config) {
		c.SubmitLimit = shield.RateLimitConfig{MaxRequests: 1, Window: time.Minute, Enabled: true}
	})
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")

	do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")})
	rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")})
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestFeedback_ListUpdateDelete(t *testing.T) {
	svc := setupTestService(t)
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	bob := registerUser(t, svc, "bob@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")

	var ids []string
	for _, d := range []string{"first", "second", "third"} {
		rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", d)})
		ids = append(ids, decode[feedbackResp](t, rec).Feedback.ID)
	}

	rec := do(t, h, call{method: "GET", path: "/api/feedback?limit=2", bearer: ada.APIKey})
	list := decode[struct{ Feedbacks []Feedback }](t, rec).Feedbacks
	if len(list) != 2 || list[0].ID != ids[2] {
		t.Fatalf("list = %d items, first %v", len(list), list)
	}
	if rec := do(t, h, call{method: "GET", path: "/api/feedback?status=bogus", bearer: ada.APIKey}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: %d", rec.Code)
	}

	rec = do(t, h, call{method: "PUT", path: "/api/feedback/" + ids[0], bearer: ada.APIKey,
		body: map[string]string{"status": "resolved", "priority": "high", "resolutionNote": "fixed in 1a2b3c"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	f := decode[feedbackResp](t, rec).Feedback
	if f.Status != StatusResolved || f.Priority != PriorityHigh || f.ResolvedAt == nil || f.ResolutionNote != "fixed in 1a2b3c" {
		t.Fatalf("after resolve: %+v", f)
	}

	rec = do(t, h, call{method: "PUT", path: "/api/feedback/" + ids[0], bearer: ada.APIKey, body: map[string]string{"status": "in_progress"}})
	f = decode[feedbackResp](t, rec).Feedback
	if f.ResolvedAt != nil || f.Priority != PriorityHigh {
		t.Fatalf("reopen: %+v", f)
	}

	if rec := do(t, h, call{method: "PUT", path: "/api/feedback/" + ids[0], bearer: ada.APIKey, body: map[string]string{"priority": "urgent"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad priority: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "GET", path: "/api/feedback/" + ids[0], bearer: bob.APIKey}); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign read: %d", rec.Code)
	}
	if rec := do(t, h, call{method: "DELETE", path: "/api/feedback/" + ids[0], bearer: ada.APIKey}); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = do(t, h, call{method: "GET", path: "/api/feedback/" + ids[0], bearer: ada.APIKey})
	if rec.Code != http.StatusNotFound || decode[map[string]string](t, rec)["error"] != "Feedback not found" {
		t.Fatalf("after delete: %d", rec.Code)
	}
}

func TestFeedback_Screenshots(t *testing.T) {
	svc := setupTestService(t)
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")
	rec := do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")})
	id := decode[feedbackResp](t, rec).Feedback.ID

	rec = do(t, h, call{method: "GET", path: "/api/feedback/" + id + "/screenshot", bearer: ada.APIKey})
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("screenshot: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), pngBytes(t)) {
		t.Fatal("screenshot bytes differ")
	}

	rec = do(t, h, call{method: "GET", path: "/api/feedback/" + id + "/screenshot.pdf", bearer: ada.APIKey})
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf: %d %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("not a PDF")
	}

	if rec := do(t, h, call{method: "GET", path: "/api/feedback/missing/screenshot", bearer: ada.APIKey}); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", rec.Code)
	}
}

func TestExtensionConfigAndWarnings(t *testing.T) {
	svc := setupTestService(t, func(c *Config) { c.Tiers = map[string]Limits{TierFree: {Projects: 5}} })
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	wide := createProject(t, h, ada.APIKey, "Wide", "*.example.com")
	narrow := createProject(t, h, ada.APIKey, "Narrow", "app.example.com")
	off := createProject(t, h, ada.APIKey, "Off", "off.dev")
	do(t, h, call{method: "PUT", path: "/api/projects/" + off.ID, bearer: ada.APIKey, body: map[string]bool{"isActive": false}})

	rec := do(t, h, call{method: "GET", path: "/api/extension/config", bearer: ada.APIKey})
	cfg := decode[ExtensionConfig](t, rec)
	want := ExtensionConfig{
		APIURL: "http://devlens.test/api",
		UserID: ada.ID,
		Projects: []ExtensionProject{
			{ID: wide.ID, Name: "Wide", Domains: []string{"*.example.com"}},
			{ID: narrow.ID, Name: "Narrow", Domains: []string{"app.example.com"}},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("extension config (-want +got):\n%s", diff)
	}

	rec = do(t, h, call{method: "GET", path: "/api/projects/warnings", bearer: ada.APIKey})
	warnings := decode[struct {
		Warnings []struct {
			ProjectID string
			Pattern   string
		}
	}](t, rec).Warnings
	if len(warnings) != 1 || warnings[0].ProjectID != narrow.ID || warnings[0].Pattern != "app.example.com" {
		t.Fatalf("warnings = %+v", warnings)
	}

	rec = do(t, h, call{method: "GET", path: "/api/projects/match?url=https://app.example.com/x", bearer: ada.APIKey})
	m := decode[map[string]any](t, rec)
	if m["matched"] != true || m["match"].(map[string]any)["projectId"] != wide.ID {
		t.Fatalf("match = %v", m)
	}
}

func TestSweep_Retention(t *testing.T) {
	svc := setupTestService(t)
	h := svc.Handler()
	ada := registerUser(t, svc, "ada@example.com")
	createProject(t, h, ada.APIKey, "Local", "localhost:3000")
	do(t, h, call{method: "POST", path: "/api/feedback", bearer: ada.APIKey, body: report(t, "http://localhost:3000/", "bug")})

	ctx := context.Background()
	if n, err := svc.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("fresh sweep: %d, %v", n, err)
	}
	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	if n, err := svc.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("expired sweep: %d, %v", n, err)
	}
}

func TestCleanDomains(t *testing.T) {
	// WHAT: Stored patterns are trimmed, lowercased and deduplicated; catch-all patterns are dropped.
	// WHY: The router uses patterns verbatim, so "" or "*." would claim every page.
	got := cleanDomains([]string{" App.Example.com ", "", "  ", "*.", "app.example.com", "localhost:3000", "*.Shop.dev"})
	want := []string{"app.example.com", "localhost:3000", "*.shop.dev"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cleanDomains (-want +got):\n%s", diff)
	}
}
