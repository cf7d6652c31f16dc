package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/devlens/kit"
)

var testSecret = []byte(strings.Repeat("s", 32))

const (
	userKey    = "devlens_0000000000000000000000000000000000000001"
	projectKey = "proj_0000000000000000000000000000000000000002"
)

type fakeKeys struct{}

func (fakeKeys) UserIDByKey(_ context.Context, key string) (string, error) {
	if key == userKey {
		return "u1", nil
	}
	return "", nil
}

func (fakeKeys) ProjectByKey(_ context.Context, key string) (string, string, error) {
	if key == projectKey {
		return "p1", "u1", nil
	}
	return "", "", nil
}

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken(testSecret, &Claims{UserID: "u1", Email: "a@b.c", Tier: "pro"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ValidateToken(testSecret, tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "u1" || claims.Tier != "pro" || claims.Subject != "u1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestToken_Rejects(t *testing.T) {
	if _, err := GenerateToken([]byte("short"), &Claims{UserID: "u1"}, time.Hour); err == nil {
		t.Fatal("short secret accepted")
	}

	expired, err := GenerateToken(testSecret, &Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateToken(testSecret, expired); err == nil {
		t.Fatal("expired token accepted")
	}

	tok, _ := GenerateToken(testSecret, &Claims{UserID: "u1"}, time.Hour)
	if _, err := ValidateToken([]byte(strings.Repeat("x", 32)), tok); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
}

func identify(t *testing.T, setup func(*http.Request)) (user, project string) {
	t.Helper()
	h := Middleware(testSecret, fakeKeys{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = kit.GetUserID(r.Context())
		project = kit.GetProjectID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	setup(req)
	h.ServeHTTP(httptest.NewRecorder(), req)
	return user, project
}

func TestMiddleware_Credentials(t *testing.T) {
	session, err := GenerateToken(testSecret, &Claims{UserID: "u9"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		setup       func(*http.Request)
		wantUser    string
		wantProject string
	}{
		{"none", func(*http.Request) {}, "", ""},
		{"project key", func(r *http.Request) { r.Header.Set("X-API-Key", projectKey) }, "u1", "p1"},
		{"user key", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userKey) }, "u1", ""},
		{"unknown key", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer devlens_"+strings.Repeat("f", 40))
		}, "", ""},
		{"bearer session", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+session) }, "u9", ""},
		{"cookie session", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: session}) }, "u9", ""},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, project := identify(t, tt.setup)
			if user != tt.wantUser || project != tt.wantProject {
				t.Fatalf("got user=%q project=%q, want %q %q", user, project, tt.wantUser, tt.wantProject)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(rec, req.WithContext(kit.WithUserID(req.Context(), "u1")))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated: %d", rec.Code)
	}
}
