package domainmatch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatch_Rules(t *testing.T) {
	projects := []Project{
		{ID: "local", Domains: []string{"localhost:3000"}},
		{ID: "shop", Domains: []string{"shop.example.com"}},
		{ID: "preview", Domains: []string{"*.vercel.app"}},
		{ID: "brand", Domains: []string{"acme"}},
	}

	tests := []struct {
		url    string
		want   string
		wantOK bool
		rule   Rule
	}{
		{"https://shop.example.com/cart?x=1", "shop", true, RuleExact},
		{"HTTPS://SHOP.Example.COM/", "shop", true, RuleExact},
		{"http://localhost:3000/dashboard", "local", true, RuleHostPort},
		{"http://localhost:3001/", "", false, 0},
		{"https://my-branch.vercel.app/", "preview", true, RuleWildcard},
		{"https://acme-staging.netlify.app/", "brand", true, RuleSubstring},
		{"https://other.org/", "", false, 0},
		{"not a url", "", false, 0},
		{"://broken", "", false, 0},
		{"/relative/only", "", false, 0},
		{"mailto:someone@example.com", "", false, 0},
		{"", "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			res, ok := Explain(tt.url, projects)
			if ok != tt.wantOK || res.ProjectID != tt.want || res.Rule != tt.rule {
				t.Fatalf("Explain(%q) = %+v, %v; want %q, %v, %v", tt.url, res, ok, tt.want, tt.wantOK, tt.rule)
			}
			id, ok := Match(tt.url, projects)
			if id != tt.want || ok != tt.wantOK {
				t.Fatalf("Match(%q) = %q, %v", tt.url, id, ok)
			}
		})
	}
}

func TestMatch_FirstProjectWins(t *testing.T) {
	projects := []Project{
		{ID: "A", Domains: []string{"*.example.com"}},
		{ID: "B", Domains: []string{"app.example.com"}},
	}
	res, ok := Explain("https://app.example.com/settings", projects)
	if !ok || res.ProjectID != "A" || res.Rule != RuleWildcard {
		t.Fatalf("got %+v, %v; want A via wildcard", res, ok)
	}
}

func TestMatch_PatternOrderWithinProject(t *testing.T) {
	projects := []Project{
		{ID: "A", Domains: []string{"example", "app.example.com"}},
	}
	res, _ := Explain("https://app.example.com", projects)
	if res.Pattern != "example" || res.Rule != RuleSubstring {
		t.Fatalf("got %+v, want the earlier substring pattern", res)
	}
}

func TestMatch_SubstringShadowsLaterProject(t *testing.T) {
	projects := []Project{
		{ID: "A", Domains: []string{"example"}},
		{ID: "B", Domains: []string{"example-attacker.com"}},
	}
	if id, _ := Match("https://example-attacker.com", projects); id != "A" {
		t.Fatalf("got %q, want A", id)
	}
}

func TestMatch_Ports(t *testing.T) {
	tests := []struct {
		pattern string
		url     string
		want    bool
	}{
		{"example.dev:8443", "https://example.dev:8443/", true},
		{"example.dev:443", "https://example.dev:443/", false},
		{"example.dev:", "https://example.dev:443/", true},
		{"example.dev:", "https://example.dev/", true},
		{"[::1]:3000", "http://[::1]:3000/", true},
		{"[::1]", "http://[::1]/", true},
	}
	for _, tt := range tests {
		_, ok := Match(tt.url, []Project{{ID: "p", Domains: []string{tt.pattern}}})
		if ok != tt.want {
			t.Errorf("pattern %q vs %q: got %v, want %v", tt.pattern, tt.url, ok, tt.want)
		}
	}
}

func TestMatch_PatternsUsedAsGiven(t *testing.T) {
	// WHAT: Patterns are not trimmed, lowercased or filtered; "" and "*." match every host.
	// WHY: Routing must not quietly differ from the matching rules; cleaning belongs to whoever stores patterns.
	tests := []struct {
		pattern string
		want    bool
		rule    Rule
	}{
		{"", true, RuleSubstring},
		{"*.", true, RuleWildcard},
		{"App.Example.com", false, 0},
		{" app.example.com", false, 0},
		{"app.example.com", true, RuleExact},
	}
	for _, tt := range tests {
		res, ok := Explain("https://app.example.com", []Project{{ID: "A", Domains: []string{tt.pattern}}})
		if ok != tt.want || res.Rule != tt.rule {
			t.Errorf("pattern %q: got %+v, %v; want %v via %v", tt.pattern, res, ok, tt.want, tt.rule)
		}
		if ok && res.ProjectID != "A" {
			t.Errorf("pattern %q: project %q, want A", tt.pattern, res.ProjectID)
		}
	}

	projects := []Project{
		{ID: "catchall", Domains: []string{"*."}},
		{ID: "real", Domains: []string{"example.com"}},
	}
	if id, _ := Match("https://example.com", projects); id != "catchall" {
		t.Fatalf("got %q, want catchall", id)
	}
	shadows := Audit(projects)
	if len(shadows) != 1 || shadows[0].Pattern != "example.com" || shadows[0].ShadowedBy.ProjectID != "catchall" {
		t.Fatalf("Audit = %+v, want example.com shadowed by catchall", shadows)
	}
}

func TestMatch_NoProjects(t *testing.T) {
	if _, ok := Match("https://example.com", nil); ok {
		t.Fatal("matched with no projects")
	}
}

func TestAudit(t *testing.T) {
	projects := []Project{
		{ID: "A", Domains: []string{"*.example.com", "acme"}},
		{ID: "B", Domains: []string{"app.example.com", "*.other.com", "acme.io"}},
		{ID: "C", Domains: []string{"unique.net", "localhost:3000"}},
	}
	got := Audit(projects)
	want := []Shadow{
		{ProjectID: "B", Pattern: "app.example.com", ShadowedBy: Result{ProjectID: "A", Pattern: "*.example.com", Rule: RuleWildcard, RuleName: "wildcard"}},
		{ProjectID: "B", Pattern: "acme.io", ShadowedBy: Result{ProjectID: "A", Pattern: "acme", Rule: RuleSubstring, RuleName: "substring"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Audit mismatch (-want +got):\n%s", diff)
	}
}
