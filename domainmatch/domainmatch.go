// Package domainmatch routes a page URL to the project that owns it.
//
// Each project carries an ordered list of domain patterns. Projects are
// tried in order, and within a project patterns are tried in order; the
// first pattern that matches wins. A pattern matches the URL host when:
//
//  1. it equals the hostname ("app.example.com")
//  2. it equals hostname:port ("localhost:3000"); the port is the explicit
//     non-default port, so "https://x.dev:443" has an empty port
//  3. it is "*.suffix" and the hostname ends with suffix ("*.example.com")
//  4. the hostname contains it ("example" matches "example.vercel.app")
//
// Patterns are compared as given while the hostname is lowercased by URL
// parsing, so "App.Example.com" matches nothing. The empty pattern and "*."
// match every host. Callers that accept patterns from users clean them
// before storing.
//
// Rule 4 is broad and makes list order significant: an early project with a
// short pattern shadows later, more specific ones. Explain and Audit exist
// so owners can see which rule fired and which patterns are unreachable.
package domainmatch

import (
	"net/url"
	"strings"
)

// Project is the routing view of a project.
type Project struct {
	ID      string   `json:"id"`
	Domains []string `json:"domains"`
}

// Rule identifies which matching rule fired.
type Rule int

const (
	RuleExact Rule = iota + 1
	RuleHostPort
	RuleWildcard
	RuleSubstring
)

func (r Rule) String() string {
	switch r {
	case RuleExact:
		return "exact"
	case RuleHostPort:
		return "host_port"
	case RuleWildcard:
		return "wildcard"
	case RuleSubstring:
		return "substring"
	}
	return "none"
}

// Result describes a successful match.
type Result struct {
	ProjectID string `json:"projectId"`
	Pattern   string `json:"pattern"`
	Rule      Rule   `json:"-"`
	RuleName  string `json:"rule"`
}

// Match returns the id of the first project matching rawURL. Malformed URLs
// and URLs without a host match nothing.
func Match(rawURL string, projects []Project) (string, bool) {
	res, ok := Explain(rawURL, projects)
	return res.ProjectID, ok
}

// Explain is Match, reporting which pattern and rule decided.
func Explain(rawURL string, projects []Project) (Result, bool) {
	host, port, ok := split(rawURL)
	if !ok {
		return Result{}, false
	}
	hostPort := host + ":" + port

	for _, p := range projects {
		for _, pattern := range p.Domains {
			if rule := match(pattern, host, hostPort); rule != 0 {
				return Result{ProjectID: p.ID, Pattern: pattern, Rule: rule, RuleName: rule.String()}, true
			}
		}
	}
	return Result{}, false
}

func match(pattern, host, hostPort string) Rule {
	switch {
	case pattern == host:
		return RuleExact
	case pattern == hostPort:
		return RuleHostPort
	case strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[2:]):
		return RuleWildcard
	case strings.Contains(host, pattern):
		return RuleSubstring
	}
	return 0
}

// defaultPorts are omitted from URL.port by browsers.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// split extracts the browser-style hostname and port of rawURL. IPv6 hosts
// keep their brackets.
func split(rawURL string) (host, port string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return "", "", false
	}
	host = strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port = u.Port()
	if port == defaultPorts[strings.ToLower(u.Scheme)] {
		port = ""
	}
	return host, port, true
}

// Shadow reports a concrete pattern that can never route to its own project
// because an earlier project already claims it.
type Shadow struct {
	ProjectID  string `json:"projectId"`
	Pattern    string `json:"pattern"`
	ShadowedBy Result `json:"shadowedBy"`
}

// Audit lists the shadowed concrete patterns (plain hosts and host:port)
// of projects. Wildcard and substring patterns are not audited since they
// describe sets of hosts.
func Audit(projects []Project) []Shadow {
	var out []Shadow
	for i, p := range projects {
		for _, pattern := range p.Domains {
			if pattern == "" || strings.HasPrefix(pattern, "*.") || !strings.Contains(pattern, ".") && !strings.Contains(pattern, ":") {
				continue
			}
			res, ok := Explain("http://"+pattern, projects[:i])
			if ok {
				out = append(out, Shadow{ProjectID: p.ID, Pattern: pattern, ShadowedBy: res})
			}
		}
	}
	return out
}
